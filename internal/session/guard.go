// Package session decides whether the exporter may run in the current browsing context.
package session

import (
	"context"
	"fmt"
	"strings"

	"printer_history/exporter-go/internal/ui"
)

const (
	DefaultPrefix = "https://connect.prusa3d.com/"

	ReadyMessage      = "Waiting for extraction..."
	NavigationMessage = "Please navigate to Prusa Connect to use this extension."
)

// TabSource reports the URL of the focused tab.
type TabSource interface {
	ActiveURL(ctx context.Context) (string, error)
}

// StaticTab is a TabSource with a fixed URL, as configured for headless runs.
type StaticTab string

func (s StaticTab) ActiveURL(context.Context) (string, error) {
	return string(s), nil
}

// NavigationError reports that the focused tab is not on the dashboard.
type NavigationError struct {
	URL string
}

func (e *NavigationError) Error() string {
	return NavigationMessage
}

type Guard struct {
	prefix string
}

func NewGuard(prefix string) *Guard {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Guard{prefix: prefix}
}

// Usable reports whether url starts with the dashboard prefix. The comparison
// is case-sensitive and the url is not normalized.
func (g *Guard) Usable(url string) bool {
	return strings.HasPrefix(url, g.prefix)
}

// Result of a context check. Fetch is nil unless the context was usable.
type Result struct {
	Usable bool
	URL    string
	Fetch  func() error
}

// CheckContext reads the active tab once and renders the outcome. When the tab
// is usable the fetch action is enabled and onFetch becomes reachable through
// Result.Fetch; otherwise a *NavigationError is returned and nothing is attached.
func (g *Guard) CheckContext(ctx context.Context, tabs TabSource, p ui.Presenter, onFetch func() error) (Result, error) {
	url, err := tabs.ActiveURL(ctx)
	if err != nil {
		url = ""
	}

	if !g.Usable(url) {
		p.SetConnectionStatus(false)
		p.ShowError(NavigationMessage)
		navErr := &NavigationError{URL: url}
		if err != nil {
			return Result{URL: url}, fmt.Errorf("%w (tab lookup: %v)", navErr, err)
		}
		return Result{URL: url}, navErr
	}

	p.SetConnectionStatus(true)
	p.EnableFetchAction()
	p.ShowWarning(ReadyMessage)
	return Result{Usable: true, URL: url, Fetch: onFetch}, nil
}
