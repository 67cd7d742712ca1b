package poll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/24601/agent-deep-research/internal/gemini"
)

// DefaultTimeout bounds a polling session when the caller sets none.
const DefaultTimeout = 30 * time.Minute

// InteractionGetter fetches the current snapshot of a research interaction.
type InteractionGetter interface {
	GetInteraction(ctx context.Context, id string) (*gemini.Interaction, error)
}

// HistoryRecorder persists completed run durations for future scheduling.
type HistoryRecorder interface {
	RecordCompletion(id string, durationSeconds int64, grounded bool) error
}

// Progress receives polling lifecycle events. Calls arrive from the polling
// goroutine; implementations must return promptly.
type Progress interface {
	// Strategy fires once, before the first fetch.
	Strategy(adaptive bool)
	// Step fires for each newly observed output step that carries text.
	Step(ev StepEvent)
	// Transient fires when a fetch fails and will be retried.
	Transient(err error, elapsed time.Duration)
}

// StepEvent describes one newly observed output step.
type StepEvent struct {
	Status  string
	Index   int // zero-based position in the output stream
	Total   int // steps observed so far
	Text    string
	Elapsed time.Duration
}

// TerminalError reports a run that ended in failure or cancellation.
type TerminalError struct {
	ID     string
	Status string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("research %s: %s", e.Status, e.ID)
}

// DeadlineError reports a session that outlived its timeout. The remote run
// keeps going and stays queryable by ID.
type DeadlineError struct {
	ID      string
	Elapsed time.Duration
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("research timed out after %ds: %s", int(e.Elapsed.Seconds()), e.ID)
}

// Poller drives one interaction to a terminal state. Client and Strategy are
// required; the rest is optional.
type Poller struct {
	Client   InteractionGetter
	Strategy Strategy
	History  HistoryRecorder
	Progress Progress
	Log      *zap.Logger
	Timeout  time.Duration
	Grounded bool

	// test seams; nil means real time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Wait polls until the interaction completes, fails, outlives Timeout, or
// ctx is cancelled. It returns the last snapshot (nil before the first
// successful fetch) and the wall time spent waiting. On completion the
// duration is recorded through History; recording failures are logged and
// swallowed.
func (p *Poller) Wait(ctx context.Context, id string) (*gemini.Interaction, time.Duration, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	strategy := p.Strategy
	if strategy == nil {
		strategy = fixedStrategy{}
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	if p.Progress != nil {
		p.Progress.Strategy(strategy.Adaptive())
	}
	log.Debug("polling research",
		zap.String("id", id),
		zap.Bool("adaptive", strategy.Adaptive()),
		zap.Duration("timeout", timeout))

	start := now() // monotonic; wall clock jumps do not distort elapsed
	seen := 0
	for {
		elapsed := now().Sub(start)
		if elapsed > timeout {
			log.Warn("research timed out",
				zap.String("id", id), zap.Duration("elapsed", elapsed))
			return nil, elapsed, &DeadlineError{ID: id, Elapsed: elapsed}
		}

		interaction, err := p.Client.GetInteraction(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, now().Sub(start), ctx.Err()
			}
			log.Debug("poll failed, retrying", zap.String("id", id), zap.Error(err))
			if p.Progress != nil {
				p.Progress.Transient(err, elapsed)
			}
			if serr := sleep(ctx, strategy.Interval(elapsed)); serr != nil {
				return nil, now().Sub(start), serr
			}
			continue
		}

		seen = p.publishSteps(interaction, seen, elapsed)

		switch {
		case gemini.IsSuccess(interaction.Status):
			duration := now().Sub(start)
			p.recordCompletion(log, id, duration)
			log.Info("research completed",
				zap.String("id", id), zap.Duration("duration", duration))
			return interaction, duration, nil
		case gemini.IsTerminal(interaction.Status):
			return interaction, now().Sub(start), &TerminalError{ID: id, Status: interaction.Status}
		}

		if err := sleep(ctx, strategy.Interval(elapsed)); err != nil {
			return interaction, now().Sub(start), err
		}
	}
}

// publishSteps forwards output steps beyond the seen watermark and returns
// the new watermark.
func (p *Poller) publishSteps(in *gemini.Interaction, seen int, elapsed time.Duration) int {
	if len(in.Outputs) <= seen {
		return seen
	}
	if p.Progress != nil {
		for i := seen; i < len(in.Outputs); i++ {
			if in.Outputs[i].Text == "" {
				continue
			}
			p.Progress.Step(StepEvent{
				Status:  in.Status,
				Index:   i,
				Total:   len(in.Outputs),
				Text:    in.Outputs[i].Text,
				Elapsed: elapsed,
			})
		}
	}
	return len(in.Outputs)
}

// recordCompletion persists the run duration. History is advisory: failures
// must not turn a successful run into a failed one.
func (p *Poller) recordCompletion(log *zap.Logger, id string, duration time.Duration) {
	if p.History == nil {
		return
	}
	if err := p.History.RecordCompletion(id, int64(duration.Seconds()), p.Grounded); err != nil {
		log.Warn("could not record completion history",
			zap.String("id", id), zap.Error(err))
	}
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
