// Package server runs the HTTP/2 transport for pushserve.
//
// A Server owns the http.Server (HTTP/2 over TLS via x/net/http2, or h2c
// for cleartext), a chi mux with request IDs and panic recovery, the push
// rendezvous table and a table of active parent streams.
//
// # Request Flow
//
// Every request is one of two kinds:
//
//   - A promised request, created by the HTTP/2 server for a push. It carries
//     the token set by stream.HTTPStream.PushStream and is claimed by the
//     push table, which attaches its writer to the waiting sub-stream.
//   - A parent request. It is wrapped in a stream.HTTPStream, registered in
//     the active table and handed to the Handler (usually a router.Router).
//
// A promised request with an unknown token is served as a parent request.
//
// # Lifecycle
//
//	srv := server.New(cfg, r, server.WithLogger(logger))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run returns after SIGINT, SIGTERM or ctx cancellation once in-flight
// streams have finished or ShutdownTimeout has passed. Idle connections are
// only logged; the HTTP/2 server closes them after IdleTimeout.
package server
