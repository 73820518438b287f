// Package middleware provides observability for pushserve.
//
// Metrics collects Prometheus metrics for requests, pushes and render
// pipelines. Its Handler method is plain http.Handler middleware, and the
// value itself plugs into push.WithObserver and render.WithObserver:
//
//	reg := prometheus.NewRegistry()
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	pusher := push.NewPusher(src, push.WithObserver(m))
//	pipeline := render.New(pusher, render.WithObserver(m))
//
// Tracing opens an OpenTelemetry server span per request:
//
//	mux.Use(middleware.Tracing(middleware.WithTracerName("edge")))
//
// Both wrap the response writer with chi's WrapResponseWriter, which keeps
// http.Pusher and http.Flusher available to the stream adapter.
package middleware
