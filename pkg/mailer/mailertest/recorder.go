// Package mailertest records envelopes instead of delivering them.
package mailertest

import (
	"context"
	"sync"

	"github.com/grabngo/loaner/pkg/mailer"
)

// Recorder is a mailer.Sender that keeps every envelope
type Recorder struct {
	mu   sync.Mutex
	sent []mailer.Envelope

	// Err, when set, is returned from Send and nothing is recorded
	Err error
}

func (r *Recorder) Send(_ context.Context, env mailer.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, env)
	return nil
}

// Sent returns a copy of the recorded envelopes
func (r *Recorder) Sent() []mailer.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Envelope(nil), r.sent...)
}

var _ mailer.Sender = (*Recorder)(nil)
