package render

import (
	"context"
	"time"
)

// DefaultRevealInterval is the delay between two revealed characters.
const DefaultRevealInterval = 15 * time.Millisecond

// Revealer animates a reply that has already been received in full by emitting
// growing prefixes on a fixed timer. It only drives presentation; the data is
// stored before the animation starts.
type Revealer struct {
	Interval time.Duration
}

// NewRevealer returns a Revealer; a non-positive interval disables the animation.
func NewRevealer(interval time.Duration) *Revealer {
	return &Revealer{Interval: interval}
}

// Reveal calls emit with text[:1], text[:2], ... text on each tick, counting in
// runes. It stops early when ctx is done or emit returns an error. With a
// zero-or-negative interval the full text is emitted at once.
func (r *Revealer) Reveal(ctx context.Context, text string, emit func(prefix string) error) error {
	if text == "" {
		return nil
	}

	interval := DefaultRevealInterval
	if r != nil {
		interval = r.Interval
	}
	if interval <= 0 {
		return emit(text)
	}

	runes := []rune(text)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; i <= len(runes); i++ {
		if err := emit(string(runes[:i])); err != nil {
			return err
		}
		if i == len(runes) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
