// Package ui renders exporter status: connection indicator, progress and a
// single status line. Every method is a render of its arguments and never fails.
package ui

import (
	"fmt"
	"math"
)

const (
	ConnectedText    = "Connected to Prusa Connect"
	DisconnectedText = "Not connected"
)

// Level is the visual category of the status line.
type Level string

const (
	LevelNone    Level = ""
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

type Presenter interface {
	SetConnectionStatus(connected bool)
	EnableFetchAction()
	BeginProgress()
	UpdateProgress(percent float64)
	EndProgress()
	ShowWarning(message string)
	ShowError(message string)
	ShowSuccess(message string)
}

// ConnectionText returns the indicator label for a connection state.
func ConnectionText(connected bool) string {
	if connected {
		return ConnectedText
	}
	return DisconnectedText
}

// ProgressText formats a percentage the way the progress bar label shows it.
func ProgressText(percent float64) string {
	return fmt.Sprintf("Fetching data... %d%%", int(math.Round(percent)))
}

type tee []Presenter

// Tee renders every call to each of the given presenters in order.
func Tee(ps ...Presenter) Presenter {
	out := make(tee, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (t tee) SetConnectionStatus(connected bool) {
	for _, p := range t {
		p.SetConnectionStatus(connected)
	}
}

func (t tee) EnableFetchAction() {
	for _, p := range t {
		p.EnableFetchAction()
	}
}

func (t tee) BeginProgress() {
	for _, p := range t {
		p.BeginProgress()
	}
}

func (t tee) UpdateProgress(percent float64) {
	for _, p := range t {
		p.UpdateProgress(percent)
	}
}

func (t tee) EndProgress() {
	for _, p := range t {
		p.EndProgress()
	}
}

func (t tee) ShowWarning(message string) {
	for _, p := range t {
		p.ShowWarning(message)
	}
}

func (t tee) ShowError(message string) {
	for _, p := range t {
		p.ShowError(message)
	}
}

func (t tee) ShowSuccess(message string) {
	for _, p := range t {
		p.ShowSuccess(message)
	}
}
