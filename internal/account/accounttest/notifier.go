// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package accounttest

import (
	"context"
	"sync"

	"github.com/holomush/accounts/internal/account"
)

// RecordingNotifier records every event it is given and returns Err.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []account.Event

	// Err is returned from every Notify call.
	Err error
}

var _ account.Notifier = (*RecordingNotifier)(nil)

// Notify implements account.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, event account.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.Err
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []account.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]account.Event, len(n.events))
	copy(out, n.events)
	return out
}

// Last returns the most recent event of the given kind.
func (n *RecordingNotifier) Last(kind account.EventKind) (account.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Kind == kind {
			return n.events[i], true
		}
	}
	return account.Event{}, false
}
