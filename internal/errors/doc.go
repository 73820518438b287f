// Package errors provides coded, operator-facing errors for the pushserve
// command.
//
// Library packages return plain sentinel and typed errors. The command and
// the config loader wrap them in a CodedError so the terminal output names a
// stable code, the offending file position and a hint:
//
//	ERROR E101: Invalid config file
//
//	  pushserve.json:4:18
//
//	       2 │   "server": {
//	       3 │     "address": ":8443",
//	  →    4 │     "h2c": true,,
//	         │                 ^
//	       5 │   }
//
//	  pushserve.json could not be parsed as JSON.
//
// # Error Codes
//
//   - E100-E109: configuration
//   - E120-E129: storage
//   - E140-E149: server lifecycle
//   - E160-E169: command line
package errors
