package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
)

// ErrStreamInterrupted marks a response stream that failed or stalled
// mid-flight. The accumulated partial text is never committed.
var ErrStreamInterrupted = errors.New("stream: interrupted")

// Accumulator folds an ordered fragment sequence into one growing text.
// It is the single consumer of the stream; ordering is guaranteed by the
// channel itself.
type Accumulator struct {
	idleTimeout time.Duration
}

// NewAccumulator builds an accumulator. idleTimeout bounds the wait for
// the next fragment; zero disables the watchdog and a stalled stream then
// blocks until the context is cancelled.
func NewAccumulator(idleTimeout time.Duration) *Accumulator {
	return &Accumulator{idleTimeout: idleTimeout}
}

// Consume pulls fragments until exhaustion, appending each in emission
// order and invoking onUpdate with the accumulated text so far. It returns
// the final text on success. Context cancellation stops consumption (the
// remote is simply no longer read); a fragment-borne error or an idle
// stall returns ErrStreamInterrupted.
func (a *Accumulator) Consume(ctx context.Context, fragments genai.Stream, onUpdate func(accumulated string)) (string, error) {
	var sb strings.Builder

	var idle *time.Timer
	var idleC <-chan time.Time
	if a.idleTimeout > 0 {
		idle = time.NewTimer(a.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-idleC:
			return "", fmt.Errorf("%w: no fragment for %s", ErrStreamInterrupted, a.idleTimeout)

		case fragment, ok := <-fragments:
			if !ok {
				return sb.String(), nil
			}
			if fragment.Err != nil {
				return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, fragment.Err)
			}

			sb.WriteString(fragment.Text)
			if onUpdate != nil {
				onUpdate(sb.String())
			}

			if idle != nil {
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(a.idleTimeout)
			}
		}
	}
}
