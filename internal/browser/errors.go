package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by page actions when the selector matches nothing.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timed out waiting for element")
)

// closedPatterns are fragments of chromedp/websocket errors seen when the
// browser window is closed under us.
var closedPatterns = []string{
	"websocket: close",
	"target closed",
	"browser: not connected",
	"session closed",
	"page closed",
	"connection refused",
	"broken pipe",
	"invalid context",
}

// IsBrowserClosed checks if an error indicates the browser was forcefully
// closed. Bounded element waits (ErrTimeout) are not treated as a closed browser.
func IsBrowserClosed(err error) bool {
	if err == nil || errors.Is(err, ErrTimeout) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range closedPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
