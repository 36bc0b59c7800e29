package ui

import (
	"fmt"
	"io"
	"sync"
)

// Console renders to a terminal, one line per update.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) SetConnectionStatus(connected bool) {
	mark := "o"
	if connected {
		mark = "*"
	}
	c.printf("[%s] %s", mark, ConnectionText(connected))
}

// EnableFetchAction is a no-op: a console run triggers the fetch itself.
func (c *Console) EnableFetchAction() {}

func (c *Console) BeginProgress() {
	c.UpdateProgress(0)
}

func (c *Console) UpdateProgress(percent float64) {
	c.printf("%s", ProgressText(percent))
}

func (c *Console) EndProgress() {}

func (c *Console) ShowWarning(message string) {
	c.printf("warning: %s", message)
}

func (c *Console) ShowError(message string) {
	c.printf("%s", message)
}

func (c *Console) ShowSuccess(message string) {
	c.printf("%s", message)
}
