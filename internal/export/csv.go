// Package export turns collected job histories into CSV files inside one zip archive.
package export

import (
	"math"
	"strings"
	"time"

	"printer_history/exporter-go/internal/connect"
)

const Missing = "N/A"

// Header is the first line of every CSV file.
var Header = []string{
	"Title",
	"Status",
	"Printing Time",
	"Material",
	"Print End",
	"Filament Usage (g)",
	"Path to Model",
}

const (
	// DateLayout is DD-MM-YYYY, used in file names.
	DateLayout = "02-01-2006"
	// TimestampLayout renders job end times as an en-GB locale string.
	TimestampLayout = "02/01/2006, 15:04:05"
	// InvalidDate is rendered for timestamps outside the representable range.
	InvalidDate = "Invalid Date"

	// maxEpochMillis bounds a valid date at 100,000,000 days either side of 1970.
	maxEpochMillis = 8.64e15
)

// TimeFormatter renders an epoch-seconds timestamp.
type TimeFormatter func(epochSeconds float64) string

// NewTimeFormatter renders timestamps in loc using layout. Empty layout means
// TimestampLayout and nil loc means time.Local.
func NewTimeFormatter(loc *time.Location, layout string) TimeFormatter {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = TimestampLayout
	}
	return func(epochSeconds float64) string {
		ms := epochSeconds * 1000
		if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
			return InvalidDate
		}
		return time.UnixMilli(int64(ms)).In(loc).Format(layout)
	}
}

// FormatDate renders t as DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ToCSV renders jobs one per line under Header. Every field is quoted with
// embedded quotes doubled, absent fields read N/A, and lines are joined by
// "\n" with no trailing newline.
func ToCSV(jobs []connect.Job, formatTime TimeFormatter) string {
	if formatTime == nil {
		formatTime = NewTimeFormatter(nil, "")
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(Header, ","))
	for _, j := range jobs {
		end := Missing
		if f, ok := j.End.Float(); ok {
			end = formatTime(f)
		}

		fields := [...]string{
			orMissing(j.Title()),
			orMissing(j.State),
			orMissing(j.TimePrinting),
			orMissing(j.FilamentType()),
			end,
			orMissing(j.FilamentUsedG()),
			orMissing(j.Path),
		}

		sb.WriteByte('\n')
		for i, f := range fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(quote(f))
		}
	}
	return sb.String()
}

func orMissing(v connect.Value) string {
	if s, ok := v.String(); ok {
		return s
	}
	return Missing
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SafeFileName returns "{name}_{date}.csv" with / \ : * ? " < > | in name
// replaced by underscores. Distinct names may map to the same file name.
func SafeFileName(name, date string) string {
	return unsafeChars.Replace(name) + "_" + date + ".csv"
}
