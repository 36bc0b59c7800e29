// Package collector gathers each device's job history, one device at a time.
package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"printer_history/exporter-go/internal/connect"
)

// Source is the subset of the API client the collector needs.
//
// *connect.Client satisfies this.
type Source interface {
	FetchDevices(ctx context.Context) ([]connect.Device, error)
	FetchJobs(ctx context.Context, uuid string) ([]connect.Job, error)
}

// Bundle pairs a device with its jobs in API order.
type Bundle struct {
	Device connect.Device
	Jobs   []connect.Job
}

type Collector struct {
	log zerolog.Logger
	src Source
}

func New(log zerolog.Logger, src Source) *Collector {
	return &Collector{log: log, src: src}
}

// CollectAll fetches the device list, then each device's jobs sequentially.
// progress is called after every device with the completed share in percent,
// so it sees exactly len(devices) increasing values ending at 100. Any error
// aborts the whole collection and no bundles are returned.
func (c *Collector) CollectAll(ctx context.Context, progress func(percent float64)) ([]Bundle, error) {
	devices, err := c.src.FetchDevices(ctx)
	if err != nil {
		return nil, err
	}

	total := len(devices)
	c.log.Info().Int("devices", total).Msg("device list fetched")

	bundles := make([]Bundle, 0, total)
	for i, d := range devices {
		jobs, err := c.src.FetchJobs(ctx, d.UUID)
		if err != nil {
			return nil, fmt.Errorf("printer %q: %w", d.Name, err)
		}
		if jobs == nil {
			jobs = []connect.Job{}
		}
		bundles = append(bundles, Bundle{Device: d, Jobs: jobs})

		c.log.Debug().Str("uuid", d.UUID).Str("name", d.Name).Int("jobs", len(jobs)).Msg("jobs fetched")
		if progress != nil {
			progress(float64(i+1) / float64(total) * 100)
		}
	}

	return bundles, nil
}
