package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"printer_history/exporter-go/internal/collector"
)

type Entry struct {
	Name string
	CSV  string
}

// Archive is the finished export. Data holds the zip bytes.
type Archive struct {
	Date    string
	Entries []Entry
	// Duplicates lists entry names that occur more than once. They are
	// written as-is; extracting the zip keeps only the last one.
	Duplicates []string
	Data       []byte
}

// BuildArchive writes one CSV entry per bundle, in bundle order, dated with
// now. An empty job list still yields a header-only file.
func BuildArchive(bundles []collector.Bundle, now time.Time, formatTime TimeFormatter) (*Archive, error) {
	date := FormatDate(now)
	a := &Archive{Date: date, Entries: make([]Entry, 0, len(bundles))}

	seen := make(map[string]int, len(bundles))
	for _, b := range bundles {
		name := SafeFileName(b.Device.Name, date)
		seen[name]++
		if seen[name] == 2 {
			a.Duplicates = append(a.Duplicates, name)
		}
		a.Entries = append(a.Entries, Entry{Name: name, CSV: ToCSV(b.Jobs, formatTime)})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range a.Entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", e.Name, err)
		}
		if _, err := w.Write([]byte(e.CSV)); err != nil {
			return nil, fmt.Errorf("write %s to archive: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	a.Data = buf.Bytes()
	return a, nil
}
