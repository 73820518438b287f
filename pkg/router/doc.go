// Package router dispatches request streams.
//
// There are two routes:
//
//	/        staged HTML document: respond 200, push the early assets, then
//	         run the render pipeline, which pushes the late assets last
//	anything file from the storage source, GET and HEAD only, no pushes
//
// Paths are sanitized before they reach storage; rejected paths answer 404.
// Failures on either route go through push.Classifier.
//
// # Usage
//
//	r := router.New(storage.NewDirSource("./public"),
//	    router.WithEarlyAssets("style.css", "style1.css"),
//	    router.WithLateAssets("script.js"),
//	)
//	r.Handle(ctx, req.URL.Path, req.Method, stream.NewHTTPStream(w, req, table))
package router
