package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/storage"
	"github.com/vango-dev/pushserve/pkg/stream"
	"github.com/vango-dev/pushserve/pkg/stream/streamtest"
)

func testSource(t *testing.T, files map[string]string) storage.Source {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	return storage.NewFSSource(fsys)
}

func describe(t *testing.T, name string) assets.Descriptor {
	t.Helper()
	ds, err := assets.NewCatalog(nil).Describe(name)
	if err != nil {
		t.Fatalf("Describe(%q): %v", name, err)
	}
	return ds[0]
}

func await(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome within 2s")
		return 0
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]Outcome
}

func (o *recordingObserver) ObservePush(d assets.Descriptor, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string][]Outcome)
	}
	o.outcomes[d.PublicPath()] = append(o.outcomes[d.PublicPath()], out)
}

func (o *recordingObserver) get(path string) []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.outcomes[path]...)
}

func TestPusher_Delivers(t *testing.T) {
	obs := &recordingObserver{}
	p := NewPusher(testSource(t, map[string]string{"style.css": "body{color:red}"}), WithObserver(obs))
	parent := streamtest.NewRecorder("/")

	got := await(t, p.Push(context.Background(), parent, describe(t, "style.css")))
	if got != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", got)
	}

	pushes := parent.Pushes()
	if len(pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(pushes))
	}
	sub := pushes[0]
	if sub.Path() != "/style.css" {
		t.Errorf("push path = %q", sub.Path())
	}
	if sub.Header().Get("Content-Type") != "text/css" {
		t.Errorf("content-type = %q", sub.Header().Get("Content-Type"))
	}
	if sub.Header().Get("Last-Modified") == "" {
		t.Error("expected Last-Modified on pushed asset")
	}
	if string(sub.Body()) != "body{color:red}" {
		t.Errorf("body = %q", sub.Body())
	}
	if sub.Count(streamtest.KindEnd) != 1 {
		t.Errorf("end count = %d", sub.Count(streamtest.KindEnd))
	}
	if got := obs.get("/style.css"); len(got) != 1 || got[0] != OutcomeDelivered {
		t.Errorf("observer saw %v", got)
	}
	if len(parent.Events()) != 1 {
		t.Errorf("parent should only carry the push event, got %+v", parent.Events())
	}
}

func TestPusher_WithoutStatCheck(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"script.js": "x"}), WithStatCheck(false))
	parent := streamtest.NewRecorder("/")

	if got := await(t, p.Push(context.Background(), parent, describe(t, "script.js"))); got != OutcomeDelivered {
		t.Fatalf("outcome = %v", got)
	}
	if lm := parent.Pushes()[0].Header().Get("Last-Modified"); lm != "" {
		t.Errorf("Last-Modified = %q, want none", lm)
	}
}

func TestPusher_MissingAsset(t *testing.T) {
	p := NewPusher(testSource(t, nil))
	parent := streamtest.NewRecorder("/")

	got := await(t, p.Push(context.Background(), parent, describe(t, "style1.css")))
	if got != OutcomeNotFound {
		t.Fatalf("outcome = %v, want not_found", got)
	}
	sub := parent.Pushes()[0]
	if sub.Status() != 404 {
		t.Errorf("status = %d, want 404", sub.Status())
	}
	if sub.Count(streamtest.KindEnd) != 1 {
		t.Error("sub-stream should be ended once")
	}
	if parent.Closed() {
		t.Error("parent must not be affected by a failed push")
	}
}

func TestPusher_Refused(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")
	parent.RefusePushes(stream.ErrPushRefused)

	if got := await(t, p.Push(context.Background(), parent, describe(t, "style.css"))); got != OutcomeRefused {
		t.Fatalf("outcome = %v, want refused", got)
	}
	if len(parent.Pushes()) != 0 {
		t.Error("no sub-stream expected")
	}
}

func TestPusher_ClosedParent(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")
	parent.Reset()

	if got := await(t, p.Push(context.Background(), parent, describe(t, "style.css"))); got != OutcomeRefused {
		t.Fatalf("outcome = %v, want refused", got)
	}
	if len(parent.Events()) != 0 || parent.Rejected() != 0 {
		t.Errorf("closed parent was written: events %d rejected %d", len(parent.Events()), parent.Rejected())
	}
}

func TestPusher_CreationFailure(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")
	parent.RefusePushes(errors.New("protocol error"))

	if got := await(t, p.Push(context.Background(), parent, describe(t, "style.css"))); got != OutcomeAbandoned {
		t.Fatalf("outcome = %v, want abandoned", got)
	}
	if parent.Closed() || len(parent.Events()) != 0 {
		t.Error("creation failure must not touch the parent")
	}
}

func TestPusher_SubStreamResetBeforeDelivery(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"script.js": "x"}))
	parent := streamtest.NewRecorder("/")
	parent.OnPush(func(child *streamtest.Recorder) { child.Reset() })

	if got := await(t, p.Push(context.Background(), parent, describe(t, "script.js"))); got != OutcomeRefused {
		t.Fatalf("outcome = %v, want refused", got)
	}
	sub := parent.Pushes()[0]
	if len(sub.Events()) != 0 || sub.Rejected() != 0 {
		t.Errorf("reset sub-stream was written: events %d rejected %d", len(sub.Events()), sub.Rejected())
	}
}

func TestPusher_PromiseOrderedBeforeLaterWrites(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")

	ch := p.Push(context.Background(), parent, describe(t, "style.css"))
	if err := parent.Write([]byte("<head>")); err != nil {
		t.Fatal(err)
	}
	await(t, ch)

	var parentOps []streamtest.Kind
	for _, e := range parent.Log() {
		if e.StreamPath == "/" {
			parentOps = append(parentOps, e.Kind)
		}
	}
	if len(parentOps) < 2 || parentOps[0] != streamtest.KindPush {
		t.Fatalf("parent operations = %v, want push first", parentOps)
	}
}

func TestPusher_RepeatedPushesAgainstResettingParent(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")
	d := describe(t, "style.css")

	var chans []<-chan Outcome
	for i := 0; i < 20; i++ {
		if i == 10 {
			parent.Reset()
		}
		chans = append(chans, p.Push(context.Background(), parent, d))
	}

	for i, ch := range chans {
		got := await(t, ch)
		want := OutcomeDelivered
		if i >= 10 {
			want = OutcomeRefused
		}
		if got != want {
			t.Errorf("push %d: outcome = %v, want %v", i, got, want)
		}
		select {
		case extra := <-ch:
			t.Errorf("push %d: second outcome %v", i, extra)
		default:
		}
	}
	if len(parent.Pushes()) != 10 {
		t.Errorf("sub-streams = %d, want 10", len(parent.Pushes()))
	}
}

func TestPusher_ConcurrentReset(t *testing.T) {
	p := NewPusher(testSource(t, map[string]string{"style.css": "x"}))
	parent := streamtest.NewRecorder("/")
	d := describe(t, "style.css")

	const n = 50
	results := make(chan Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- <-p.Push(context.Background(), parent, d)
		}()
	}
	parent.Reset()
	wg.Wait()
	p.Wait()
	close(results)

	count := 0
	for o := range results {
		count++
		if o != OutcomeDelivered && o != OutcomeRefused {
			t.Errorf("unexpected outcome %v", o)
		}
	}
	if count != n {
		t.Errorf("outcomes = %d, want %d", count, n)
	}
	if parent.Rejected() != 0 {
		t.Errorf("parent rejected %d operations", parent.Rejected())
	}
}

func TestOutcomeString(t *testing.T) {
	want := map[Outcome]string{
		OutcomeDelivered:   "delivered",
		OutcomeRefused:     "refused",
		OutcomeNotFound:    "not_found",
		OutcomeServerError: "server_error",
		OutcomeAbandoned:   "abandoned",
		Outcome(99):        "unknown",
	}
	for o, s := range want {
		if o.String() != s {
			t.Errorf("%d.String() = %q, want %q", o, o.String(), s)
		}
	}
}
