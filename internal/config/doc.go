// Package config loads pushserve.json.
//
// Files are read through afero so tests and tools can load from memory.
// Missing sections take defaults; Validate reports coded errors from
// internal/errors that point at the offending field.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "address": ":8443",
//	    "certFile": "certs/server.crt",
//	    "keyFile": "certs/server.key",
//	    "maxConcurrentStreams": 250,
//	    "pushAttachTimeout": "10s"
//	  },
//	  "storage": {
//	    "root": "public"
//	  },
//	  "document": {
//	    "title": "HTTP/2 project",
//	    "renderDelay": "1s",
//	    "early": ["style.css", "style1.css"],
//	    "late": ["script.js"]
//	  },
//	  "assets": {"manifest": "manifest.json"},
//	  "metrics": {"address": ":9090"},
//	  "log": {"level": "info", "format": "json"}
//	}
//
// storage.s3 replaces storage.root to serve from a bucket:
//
//	"storage": {"s3": {"bucket": "site", "prefix": "public/", "region": "eu-west-1"}}
//
// # Usage
//
//	cfg, err := config.Load(afero.NewOsFs(), ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	sc, _ := cfg.ServerConfig()
package config
