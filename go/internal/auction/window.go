package auction

import (
	"strings"
	"time"
)

// DefaultWindow is how long a drop stays biddable after its drop time.
const DefaultWindow = 24 * time.Hour

// WindowState is the phase of a drop relative to its drop time.
type WindowState int

const (
	WindowPending WindowState = iota
	WindowActive
	WindowEnded
)

func (s WindowState) String() string {
	switch s {
	case WindowPending:
		return "pending"
	case WindowActive:
		return "active"
	case WindowEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Err returns the rejection for a non-active window, or nil when active.
func (s WindowState) Err() error {
	switch s {
	case WindowPending:
		return ErrNotStarted
	case WindowEnded:
		return ErrEnded
	default:
		return nil
	}
}

// EvaluateWindow places now relative to the drop window [dropTime, dropTime+window].
// Both bounds are inclusive.
//
// A nil dropTime means the item has no temporal restriction and is always
// WindowActive. A non-positive window falls back to DefaultWindow.
func EvaluateWindow(now time.Time, dropTime *time.Time, window time.Duration) WindowState {
	if dropTime == nil {
		return WindowActive
	}
	if window <= 0 {
		window = DefaultWindow
	}
	switch {
	case now.Before(*dropTime):
		return WindowPending
	case now.After(dropTime.Add(window)):
		return WindowEnded
	default:
		return WindowActive
	}
}

var dropTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
}

// ParseDropTime parses a textual drop time. Blank or unparsable input yields nil,
// which EvaluateWindow treats as "always active". A trailing Z is accepted as UTC
// and layouts without a zone are read as UTC.
func ParseDropTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dropTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
