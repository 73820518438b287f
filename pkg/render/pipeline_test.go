package render

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/push"
	"github.com/vango-dev/pushserve/pkg/stream"
	"github.com/vango-dev/pushserve/pkg/stream/streamtest"
)

// instantClock fires every delay immediately and records what was asked.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
	before func()
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	hook := c.before
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// blockedClock never fires.
type blockedClock struct{}

func (blockedClock) After(time.Duration) <-chan time.Time { return nil }

// fakePusher records pushes onto the parent without delivering.
type fakePusher struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakePusher) Push(_ context.Context, parent stream.Stream, d assets.Descriptor) <-chan push.Outcome {
	f.mu.Lock()
	f.paths = append(f.paths, d.PublicPath())
	f.mu.Unlock()

	out := make(chan push.Outcome, 1)
	if _, err := parent.PushStream(d.PublicPath(), nil); err != nil {
		out <- push.OutcomeRefused
	} else {
		out <- push.OutcomeDelivered
	}
	return out
}

type stateObserver struct {
	mu     sync.Mutex
	states []State
}

func (o *stateObserver) ObservePipeline(s State) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func descriptors(t *testing.T, names ...string) []assets.Descriptor {
	t.Helper()
	ds, err := assets.NewCatalog(nil).Describe(names...)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	return ds
}

func respondedRecorder(t *testing.T) *streamtest.Recorder {
	t.Helper()
	rec := streamtest.NewRecorder("/")
	if err := rec.Respond(http.StatusOK, http.Header{"Content-Type": {"text/html"}}); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestPipelineRun_Ends(t *testing.T) {
	clock := &instantClock{}
	pusher := &fakePusher{}
	obs := &stateObserver{}
	p := New(pusher, WithClock(clock), WithObserver(obs))
	rec := respondedRecorder(t)

	phases := []Phase{
		{Fragment: []byte("a")},
		{Delay: 50 * time.Millisecond, Fragment: []byte("b")},
		{Fragment: []byte("c"), Push: descriptors(t, "script.js"), Final: true},
	}

	if got := p.Run(context.Background(), rec, phases); got != StateEnded {
		t.Fatalf("Run() = %v, want ended", got)
	}
	if string(rec.Body()) != "abc" {
		t.Errorf("body = %q", rec.Body())
	}
	if rec.Count(streamtest.KindEnd) != 1 {
		t.Errorf("end count = %d", rec.Count(streamtest.KindEnd))
	}
	if len(clock.delays) != 1 || clock.delays[0] != 50*time.Millisecond {
		t.Errorf("delays = %v", clock.delays)
	}

	// write, push, end
	ev := rec.Events()
	kinds := make([]streamtest.Kind, len(ev))
	for i, e := range ev {
		kinds[i] = e.Kind
	}
	want := []streamtest.Kind{
		streamtest.KindRespond,
		streamtest.KindWrite, streamtest.KindWrite, streamtest.KindWrite,
		streamtest.KindPush,
		streamtest.KindEnd,
	}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if len(obs.states) != 1 || obs.states[0] != StateEnded {
		t.Errorf("observed %v", obs.states)
	}
}

func TestPipelineRun_NoFinalPhaseStillEnds(t *testing.T) {
	p := New(nil, WithClock(&instantClock{}))
	rec := respondedRecorder(t)

	got := p.Run(context.Background(), rec, []Phase{{Fragment: []byte("x")}, {Fragment: []byte("y")}})
	if got != StateEnded || rec.Count(streamtest.KindEnd) != 1 {
		t.Fatalf("Run() = %v, ends %d", got, rec.Count(streamtest.KindEnd))
	}
}

func TestPipelineRun_StopsAtFirstFinal(t *testing.T) {
	p := New(nil, WithClock(&instantClock{}))
	rec := respondedRecorder(t)

	phases := []Phase{
		{Fragment: []byte("x"), Final: true},
		{Fragment: []byte("never")},
	}
	if got := p.Run(context.Background(), rec, phases); got != StateEnded {
		t.Fatalf("Run() = %v", got)
	}
	if string(rec.Body()) != "x" {
		t.Errorf("body = %q", rec.Body())
	}
	if rec.Rejected() != 0 {
		t.Errorf("rejected = %d, want no write after end", rec.Rejected())
	}
}

func TestPipelineRun_AbortsWhenParentClosesDuringDelay(t *testing.T) {
	rec := respondedRecorder(t)
	clock := &instantClock{before: rec.Reset}
	pusher := &fakePusher{}
	obs := &stateObserver{}
	p := New(pusher, WithClock(clock), WithObserver(obs))

	phases := []Phase{
		{Fragment: []byte("head")},
		{Delay: time.Second, Fragment: []byte("late")},
		{Fragment: []byte("body"), Push: descriptors(t, "script.js"), Final: true},
	}

	if got := p.Run(context.Background(), rec, phases); got != StateAborted {
		t.Fatalf("Run() = %v, want aborted", got)
	}
	if string(rec.Body()) != "head" {
		t.Errorf("body = %q, want only the head", rec.Body())
	}
	if rec.Count(streamtest.KindEnd) != 0 {
		t.Error("aborted run must not end the stream")
	}
	if rec.Rejected() != 0 {
		t.Errorf("rejected = %d, want no writes after close", rec.Rejected())
	}
	if len(pusher.paths) != 0 {
		t.Errorf("pushes after abort: %v", pusher.paths)
	}
	if len(obs.states) != 1 || obs.states[0] != StateAborted {
		t.Errorf("observed %v", obs.states)
	}
}

func TestPipelineRun_ParentDoneWakesDelay(t *testing.T) {
	rec := respondedRecorder(t)
	p := New(nil, WithClock(blockedClock{}))

	done := make(chan State, 1)
	go func() {
		done <- p.Run(context.Background(), rec, []Phase{{Delay: time.Hour, Fragment: []byte("x"), Final: true}})
	}()

	rec.Reset()
	select {
	case got := <-done:
		if got != StateAborted {
			t.Errorf("Run() = %v, want aborted", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not wake on parent reset")
	}
}

func TestPipelineRun_ContextWakesButParentDecides(t *testing.T) {
	rec := respondedRecorder(t)
	p := New(nil, WithClock(blockedClock{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The parent is still open, so the phase runs.
	got := p.Run(ctx, rec, []Phase{{Delay: time.Hour, Fragment: []byte("x"), Final: true}})
	if got != StateEnded || string(rec.Body()) != "x" {
		t.Fatalf("Run() = %v, body %q", got, rec.Body())
	}
}

func TestPipelineRun_ClosedBeforeStart(t *testing.T) {
	rec := respondedRecorder(t)
	rec.Reset()

	got := New(&fakePusher{}, WithClock(&instantClock{})).Run(context.Background(), rec, []Phase{{Fragment: []byte("x"), Final: true}})
	if got != StateAborted {
		t.Fatalf("Run() = %v, want aborted", got)
	}
	if len(rec.Events()) != 1 || rec.Rejected() != 0 {
		t.Errorf("closed parent was touched: %+v", rec.Events())
	}
}

func TestPipelineRun_ConcurrentRequestsAreIndependent(t *testing.T) {
	p := New(&fakePusher{}, WithClock(&instantClock{}))
	doc := Document{Early: descriptors(t, "style.css"), Late: descriptors(t, "script.js")}

	var wg sync.WaitGroup
	recs := make([]*streamtest.Recorder, 8)
	for i := range recs {
		recs[i] = respondedRecorder(t)
		if i%2 == 1 {
			recs[i].RefusePushes(stream.ErrPushRefused)
		}
		wg.Add(1)
		go func(rec *streamtest.Recorder) {
			defer wg.Done()
			p.Run(context.Background(), rec, doc.Phases())
		}(recs[i])
	}
	wg.Wait()

	want := string(recs[0].Body())
	for i, rec := range recs {
		if string(rec.Body()) != want {
			t.Errorf("request %d body differs", i)
		}
		if rec.Count(streamtest.KindEnd) != 1 {
			t.Errorf("request %d ends = %d", i, rec.Count(streamtest.KindEnd))
		}
	}
	if !strings.Contains(want, "myHelloClass") {
		t.Errorf("body = %q", want)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateStart:   "start",
		StatePhase:   "phase",
		StateClosing: "closing",
		StateEnded:   "ended",
		StateAborted: "aborted",
		State(42):    "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
	if !StateEnded.Terminal() || !StateAborted.Terminal() || StatePhase.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
