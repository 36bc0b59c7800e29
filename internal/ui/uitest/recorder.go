// Package uitest provides a Presenter that records every render for tests.
package uitest

import (
	"fmt"
	"sync"
)

// Recorder records calls as short strings such as "progress:50" or "error:Error: boom".
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Progress returns only the percentages passed to UpdateProgress.
func (r *Recorder) Progress() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, c := range r.calls {
		var p float64
		if _, err := fmt.Sscanf(c, "progress:%g", &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Last returns the most recent call or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

func (r *Recorder) SetConnectionStatus(connected bool) { r.add("connected:%t", connected) }
func (r *Recorder) EnableFetchAction()                 { r.add("enable") }
func (r *Recorder) BeginProgress()                     { r.add("begin") }
func (r *Recorder) UpdateProgress(percent float64)     { r.add("progress:%g", percent) }
func (r *Recorder) EndProgress()                       { r.add("end") }
func (r *Recorder) ShowWarning(message string)         { r.add("warning:%s", message) }
func (r *Recorder) ShowError(message string)           { r.add("error:%s", message) }
func (r *Recorder) ShowSuccess(message string)         { r.add("success:%s", message) }
