// Package warn provides the recoverable-warning collector used throughout
// the engine (spec §7): a warning never aborts the calling operation, it is
// simply recorded for the caller to inspect or print afterwards.
package warn

import "fmt"

// List accumulates warning strings in emission order.
type List struct {
	items []string
}

// Addf formats and appends a warning.
func (l *List) Addf(format string, args ...interface{}) {
	l.items = append(l.items, fmt.Sprintf(format, args...))
}

// Append copies another list's warnings onto this one, preserving order.
func (l *List) Append(other *List) {
	if other == nil {
		return
	}
	l.items = append(l.items, other.items...)
}

// Items returns the accumulated warnings in emission order.
func (l *List) Items() []string {
	return l.items
}

// Empty reports whether no warnings have been recorded.
func (l *List) Empty() bool {
	return len(l.items) == 0
}
