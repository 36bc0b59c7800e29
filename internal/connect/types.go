package connect

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Device is a printer as listed by the dashboard. Only UUID and Name are
// interpreted; the rest is carried along untouched.
type Device struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	PrinterState string `json:"printer_state,omitempty"`
	PrinterType  string `json:"printer_type,omitempty"`
}

// Job is one historical print job of a device.
type Job struct {
	ID           int64 `json:"id,omitempty"`
	State        Value `json:"state"`
	TimePrinting Value `json:"time_printing"`
	End          Value `json:"end"`
	Path         Value `json:"path"`
	File         *File `json:"file"`
}

type File struct {
	DisplayName Value     `json:"display_name"`
	Meta        *FileMeta `json:"meta"`
}

type FileMeta struct {
	FilamentType  Value `json:"filament_type"`
	FilamentUsedG Value `json:"filament_used_g"`
}

func (j Job) Title() Value {
	if j.File == nil {
		return Value{}
	}
	return j.File.DisplayName
}

func (j Job) FilamentType() Value {
	if j.File == nil || j.File.Meta == nil {
		return Value{}
	}
	return j.File.Meta.FilamentType
}

func (j Job) FilamentUsedG() Value {
	if j.File == nil || j.File.Meta == nil {
		return Value{}
	}
	return j.File.Meta.FilamentUsedG
}

// Value is a nullable JSON scalar kept in its display form. null, false, 0
// and "" decode as absent, matching how the dashboard renders empty cells.
type Value struct {
	text    string
	num     float64
	numeric bool
	set     bool
}

// StringValue builds a present string Value.
func StringValue(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{text: s, set: true}
}

// NumberValue builds a present numeric Value.
func NumberValue(f float64) Value {
	if f == 0 {
		return Value{}
	}
	return Value{text: formatNumber(f), num: f, numeric: true, set: true}
}

// formatNumber prints the shortest round-tripping decimal, switching to
// exponent form (1e+21, 1e-7) outside [1e-6, 1e21) the way the dashboard does.
func formatNumber(f float64) string {
	if a := math.Abs(f); a != 0 && (a < 1e-6 || a >= 1e21) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		i := strings.IndexByte(s, 'e')
		exp := strings.TrimLeft(s[i+2:], "0")
		return s[:i+2] + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// String returns the display text and whether the value is present.
func (v Value) String() (string, bool) {
	return v.text, v.set
}

// Float returns the numeric value and whether the value is a present number.
func (v Value) Float() (float64, bool) {
	return v.num, v.set && v.numeric
}

func (v *Value) UnmarshalJSON(b []byte) error {
	*v = Value{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case 'n', 'f':
		// null and false are absent.
		return nil
	case 't':
		*v = Value{text: "true", set: true}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '{', '[':
		*v = Value{text: string(b), set: true}
		return nil
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = NumberValue(f)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case !v.set:
		return []byte("null"), nil
	case v.numeric:
		return []byte(v.text), nil
	default:
		return json.Marshal(v.text)
	}
}
