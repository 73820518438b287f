package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/pushserve/pkg/stream"
)

type startedSpan struct {
	name  string
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// recordingTracer records span starts and hands out no-op spans.
type recordingTracer struct {
	embedded.Tracer

	mu    sync.Mutex
	spans []startedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	r.mu.Lock()
	r.spans = append(r.spans, startedSpan{name: name, attrs: cfg.Attributes(), kind: cfg.SpanKind()})
	r.mu.Unlock()
	return noop.NewTracerProvider().Tracer("test").Start(ctx, name, opts...)
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SpanPerRoute(t *testing.T) {
	tracer := &recordingTracer{}
	h := chimw.RequestID(Tracing(WithTracer(tracer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/style.css", nil))
	promised := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	promised.Header.Set(stream.PushTokenHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), promised)

	want := []string{"pushserve document", "pushserve static", "pushserve push"}
	if len(tracer.spans) != len(want) {
		t.Fatalf("spans = %d, want %d", len(tracer.spans), len(want))
	}
	for i, name := range want {
		s := tracer.spans[i]
		if s.name != name {
			t.Errorf("span %d = %q, want %q", i, s.name, name)
		}
		if s.kind != trace.SpanKindServer {
			t.Errorf("span %d kind = %v", i, s.kind)
		}
		if v, ok := attrValue(s.attrs, "pushserve.request_id"); !ok || v.AsString() == "" {
			t.Errorf("span %d missing request id", i)
		}
	}
	if v, _ := attrValue(tracer.spans[1].attrs, "http.target"); v.AsString() != "/style.css" {
		t.Errorf("http.target = %q", v.AsString())
	}
}

func TestTracing_Filter(t *testing.T) {
	tracer := &recordingTracer{}
	called := false
	h := Tracing(
		WithTracer(tracer),
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path == "/" }),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/style.css", nil))
	if !called {
		t.Fatal("filtered request must still reach the handler")
	}
	if len(tracer.spans) != 0 {
		t.Errorf("spans = %d, want 0", len(tracer.spans))
	}
}

func TestTracing_PropagatesSpanContext(t *testing.T) {
	var got context.Context
	h := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got == req.Context() {
		t.Fatal("handler should receive a derived context")
	}
	if trace.SpanFromContext(got) == nil {
		t.Fatal("expected a span on the request context")
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path    string
		promise bool
		want    string
	}{
		{"/", false, "document"},
		{"/style.css", false, "static"},
		{"/style.css", true, "push"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.promise {
			r.Header.Set(stream.PushTokenHeader, "t")
		}
		if got := RouteLabel(r); got != tt.want {
			t.Errorf("RouteLabel(%s, promise=%v) = %q, want %q", tt.path, tt.promise, got, tt.want)
		}
	}
}
