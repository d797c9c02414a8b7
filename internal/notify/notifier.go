package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Deliverer is one channel the rendered plan is handed to.
type Deliverer interface {
	Name() string
	// Validate reports configuration problems before anything is sent.
	Validate() error
	Deliver(ctx context.Context, s Summary) error
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Channel string
	Started time.Time
	Err     error
}

// Notifier fans a summary out to its deliverers in order.
type Notifier struct {
	deliverers []Deliverer
}

// NewNotifier creates a Notifier over the given deliverers.
func NewNotifier(deliverers ...Deliverer) *Notifier {
	return &Notifier{deliverers: deliverers}
}

// Channels returns the deliverer names joined with commas.
func (n *Notifier) Channels() string {
	names := make([]string, 0, len(n.deliverers))
	for _, d := range n.deliverers {
		names = append(names, d.Name())
	}
	return strings.Join(names, ",")
}

// Notify validates every deliverer, then delivers to each in turn. It stops
// at the first failure; the returned outcomes cover every attempted channel.
// Nothing is retried.
func (n *Notifier) Notify(ctx context.Context, s Summary) ([]Outcome, error) {
	if len(n.deliverers) == 0 {
		return nil, fmt.Errorf("no delivery channel configured")
	}
	for _, d := range n.deliverers {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s delivery: %w", d.Name(), err)
		}
	}

	outcomes := make([]Outcome, 0, len(n.deliverers))
	for _, d := range n.deliverers {
		start := time.Now()
		err := d.Deliver(ctx, s)
		outcomes = append(outcomes, Outcome{Channel: d.Name(), Started: start, Err: err})
		if err != nil {
			return outcomes, fmt.Errorf("failed to deliver via %s: %w", d.Name(), err)
		}
		log.Printf("[INFO] plan for %s delivered via %s", s.DateLabel, d.Name())
	}
	return outcomes, nil
}
