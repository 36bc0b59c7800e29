package ui

import "sync"

// Snapshot is the rendered surface at one point in time.
type Snapshot struct {
	Connected       bool    `json:"connected"`
	ConnectionText  string  `json:"connection_text"`
	FetchEnabled    bool    `json:"fetch_enabled"`
	ProgressVisible bool    `json:"progress_visible"`
	Percent         float64 `json:"percent"`
	ProgressText    string  `json:"progress_text"`
	Message         string  `json:"message"`
	Level           Level   `json:"level"`
}

// State keeps the latest render so the local panel can serve it.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewState() *State {
	return &State{snap: Snapshot{ConnectionText: DisconnectedText}}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}

func (s *State) SetConnectionStatus(connected bool) {
	s.update(func(sn *Snapshot) {
		sn.Connected = connected
		sn.ConnectionText = ConnectionText(connected)
	})
}

func (s *State) EnableFetchAction() {
	s.update(func(sn *Snapshot) { sn.FetchEnabled = true })
}

func (s *State) BeginProgress() {
	s.update(func(sn *Snapshot) {
		sn.FetchEnabled = false
		sn.ProgressVisible = true
		sn.Percent = 0
		sn.ProgressText = ProgressText(0)
	})
}

func (s *State) UpdateProgress(percent float64) {
	s.update(func(sn *Snapshot) {
		sn.Percent = percent
		sn.ProgressText = ProgressText(percent)
	})
}

func (s *State) EndProgress() {
	s.update(func(sn *Snapshot) {
		sn.FetchEnabled = true
		sn.ProgressVisible = false
	})
}

func (s *State) ShowWarning(message string) { s.show(LevelWarning, message) }
func (s *State) ShowError(message string)   { s.show(LevelError, message) }
func (s *State) ShowSuccess(message string) { s.show(LevelSuccess, message) }

func (s *State) show(level Level, message string) {
	s.update(func(sn *Snapshot) {
		sn.Message = message
		sn.Level = level
	})
}
