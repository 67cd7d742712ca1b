package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/24601/agent-deep-research/internal/gemini"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (linked via google.golang.org/genai) starts a permanent
	// stats worker in package init; it is not a leak from code under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptClient replays one response per fetch, repeating the last entry.
type scriptClient struct {
	calls     int
	responses []func() (*gemini.Interaction, error)
}

func (c *scriptClient) GetInteraction(ctx context.Context, id string) (*gemini.Interaction, error) {
	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++
	return c.responses[i]()
}

func running(outputs ...gemini.OutputStep) func() (*gemini.Interaction, error) {
	return func() (*gemini.Interaction, error) {
		return &gemini.Interaction{ID: "run-1", Status: gemini.StatusRunning, Outputs: outputs}, nil
	}
}

func terminal(status string, outputs ...gemini.OutputStep) func() (*gemini.Interaction, error) {
	return func() (*gemini.Interaction, error) {
		return &gemini.Interaction{ID: "run-1", Status: status, Outputs: outputs}, nil
	}
}

func fetchErr(err error) func() (*gemini.Interaction, error) {
	return func() (*gemini.Interaction, error) { return nil, err }
}

// fakeClock drives the poller's time without sleeping for real.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.t = c.t.Add(d)
	return nil
}

type recordedEntry struct {
	id       string
	duration int64
	grounded bool
}

type fakeRecorder struct {
	entries []recordedEntry
	err     error
}

func (r *fakeRecorder) RecordCompletion(id string, durationSeconds int64, grounded bool) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, recordedEntry{id, durationSeconds, grounded})
	return nil
}

type progressLog struct {
	adaptive   []bool
	steps      []StepEvent
	transients []error
}

func (p *progressLog) Strategy(adaptive bool) { p.adaptive = append(p.adaptive, adaptive) }

func (p *progressLog) Step(ev StepEvent) { p.steps = append(p.steps, ev) }

func (p *progressLog) Transient(err error, _ time.Duration) {
	p.transients = append(p.transients, err)
}

func newTestPoller(client InteractionGetter, clock *fakeClock) *Poller {
	return &Poller{
		Client:   client,
		Strategy: NewStrategy(nil, false, false),
		Timeout:  30 * time.Minute,
		now:      clock.now,
		sleep:    clock.sleep,
	}
}

func TestWaitRecordsCompletion(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){
		running(),
		running(),
		running(),
		terminal(gemini.StatusCompleted, gemini.OutputStep{Text: "final report"}),
	}}
	rec := &fakeRecorder{}

	p := newTestPoller(client, clock)
	p.History = rec
	p.Grounded = true

	in, duration, err := p.Wait(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, gemini.StatusCompleted, in.Status)

	// three 5s sleeps before the terminal fetch
	assert.Equal(t, 15*time.Second, duration)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, recordedEntry{id: "run-1", duration: 15, grounded: true}, rec.entries[0])
}

func TestWaitTimeout(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){running()}}
	rec := &fakeRecorder{}

	p := newTestPoller(client, clock)
	p.History = rec
	p.Timeout = 12 * time.Second

	_, elapsed, err := p.Wait(context.Background(), "run-1")
	require.Error(t, err)

	var dl *DeadlineError
	require.ErrorAs(t, err, &dl)
	assert.Equal(t, "run-1", dl.ID)
	assert.Greater(t, elapsed, 12*time.Second)
	assert.Empty(t, rec.entries, "timeouts must not pollute duration history")
}

func TestWaitRetriesTransientErrors(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){
		fetchErr(errors.New("http 503: unavailable")),
		fetchErr(errors.New("connection reset")),
		terminal(gemini.StatusCompleted, gemini.OutputStep{Text: "done"}),
	}}
	prog := &progressLog{}

	p := newTestPoller(client, clock)
	p.Progress = prog

	_, _, err := p.Wait(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
	require.Len(t, prog.transients, 2)
	assert.Contains(t, prog.transients[0].Error(), "http 503")
}

func TestWaitTerminalFailure(t *testing.T) {
	for _, status := range []string{gemini.StatusFailed, gemini.StatusCancelled} {
		t.Run(status, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1000, 0)}
			client := &scriptClient{responses: []func() (*gemini.Interaction, error){terminal(status)}}
			rec := &fakeRecorder{}

			p := newTestPoller(client, clock)
			p.History = rec

			in, _, err := p.Wait(context.Background(), "run-1")
			require.Error(t, err)

			var term *TerminalError
			require.ErrorAs(t, err, &term)
			assert.Equal(t, status, term.Status)
			assert.NotNil(t, in, "the failed snapshot is still returned")
			assert.Empty(t, rec.entries)
		})
	}
}

func TestWaitRecorderFailureIsSwallowed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){
		terminal(gemini.StatusCompleted, gemini.OutputStep{Text: "report"}),
	}}
	rec := &fakeRecorder{err: errors.New("disk full")}

	p := newTestPoller(client, clock)
	p.History = rec

	in, _, err := p.Wait(context.Background(), "run-1")
	require.NoError(t, err, "history persistence is best-effort")
	assert.Equal(t, gemini.StatusCompleted, in.Status)
}

func TestWaitContextCancelled(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){running()}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPoller(client, clock)
	_, _, err := p.Wait(ctx, "run-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitPublishesNewStepsOnce(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	stepA := gemini.OutputStep{Text: "plan the research"}
	stepC := gemini.OutputStep{Text: "final report"}
	client := &scriptClient{responses: []func() (*gemini.Interaction, error){
		running(stepA),
		running(stepA, gemini.OutputStep{}), // textless step advances the watermark silently
		terminal(gemini.StatusCompleted, stepA, gemini.OutputStep{}, stepC),
	}}
	prog := &progressLog{}

	p := newTestPoller(client, clock)
	p.Progress = prog

	_, _, err := p.Wait(context.Background(), "run-1")
	require.NoError(t, err)

	require.Equal(t, []bool{false}, prog.adaptive, "strategy notice fires exactly once")
	require.Len(t, prog.steps, 2)
	assert.Equal(t, 0, prog.steps[0].Index)
	assert.Equal(t, "plan the research", prog.steps[0].Text)
	assert.Equal(t, 2, prog.steps[1].Index)
	assert.Equal(t, "final report", prog.steps[1].Text)
	assert.Equal(t, gemini.StatusCompleted, prog.steps[1].Status)
}
