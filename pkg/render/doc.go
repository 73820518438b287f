// Package render streams a response in delayed phases.
//
// A Pipeline runs one state machine per request, in the request goroutine:
//
//	Start -> Phase(0) -> ... -> Phase(n) -> Closing -> Ended
//	                 \-> Aborted (parent closed at a phase boundary)
//
// Each phase waits its delay, writes a fragment to the parent stream and
// fires the pushes listed for it. The parent's Closed state is the only
// cancellation signal: it is polled when a phase resumes, and a closed
// parent ends the run with no further writes or pushes.
//
// # Basic Usage
//
//	doc := render.Document{
//	    Title:       "HTTP/2 project",
//	    Greeting:    "Hi, EmpireConf!",
//	    RenderDelay: time.Second,
//	    Early:       early,
//	    Late:        late,
//	}
//	state := render.New(pusher).Run(ctx, parent, doc.Phases())
//
// # Security
//
// Document escapes every value it writes into the page.
package render
