// Package notify delivers prediction changes: a webhook, a websocket hub for
// live subscribers, and a fan-out over both.
package notify

import (
	"context"
	"errors"
	"time"

	"roulette-dozen/internal/dozen"
)

// Change is published when the emitted label differs from the last one.
type Change struct {
	Previous      *dozen.Label            `json:"previous,omitempty"`
	Label         dozen.Label             `json:"label"`
	Confidence    float64                 `json:"confidence"`
	Probabilities map[dozen.Label]float64 `json:"probabilities,omitempty"`
	HistorySize   int                     `json:"history_size"`
	At            time.Time               `json:"at"`
}

// Notifier receives prediction changes.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) Notify(ctx context.Context, c Change) error { return f(ctx, c) }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every change.
type Nop struct{}

func (Nop) Notify(context.Context, Change) error { return nil }
