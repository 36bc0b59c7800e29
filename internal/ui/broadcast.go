package ui

import "sync"

const subscriberBacklog = 64

// Event is one render pushed to live subscribers.
type Event struct {
	Kind      string  `json:"kind"`
	Connected *bool   `json:"connected,omitempty"`
	Percent   float64 `json:"percent,omitempty"`
	Text      string  `json:"text,omitempty"`
	Level     Level   `json:"level,omitempty"`
}

const (
	EventConnection    = "connection"
	EventFetchEnabled  = "fetch_enabled"
	EventProgressBegin = "progress_begin"
	EventProgress      = "progress"
	EventProgressEnd   = "progress_end"
	EventMessage       = "message"
)

// Broadcaster fans renders out to subscribers. A subscriber that falls more
// than subscriberBacklog events behind loses the overflow.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns the event channel and a func that closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBacklog)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) SetConnectionStatus(connected bool) {
	b.publish(Event{Kind: EventConnection, Connected: &connected, Text: ConnectionText(connected)})
}

func (b *Broadcaster) EnableFetchAction() {
	b.publish(Event{Kind: EventFetchEnabled})
}

func (b *Broadcaster) BeginProgress() {
	b.publish(Event{Kind: EventProgressBegin, Text: ProgressText(0)})
}

func (b *Broadcaster) UpdateProgress(percent float64) {
	b.publish(Event{Kind: EventProgress, Percent: percent, Text: ProgressText(percent)})
}

func (b *Broadcaster) EndProgress() {
	b.publish(Event{Kind: EventProgressEnd})
}

func (b *Broadcaster) ShowWarning(message string) {
	b.publish(Event{Kind: EventMessage, Level: LevelWarning, Text: message})
}

func (b *Broadcaster) ShowError(message string) {
	b.publish(Event{Kind: EventMessage, Level: LevelError, Text: message})
}

func (b *Broadcaster) ShowSuccess(message string) {
	b.publish(Event{Kind: EventMessage, Level: LevelSuccess, Text: message})
}
