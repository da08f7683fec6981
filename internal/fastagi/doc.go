// Package fastagi implements the daemon's side of the FastAGI wire protocol.
//
// A telephony switch opens one TCP connection per call, sends an env block of
// "key: value" lines terminated by a blank line (including agi_network_script,
// the handler name, and agi_arg_N positional arguments), then waits for AGI
// commands. The daemon answers with commands such as VERBOSE, EXEC and
// SET VARIABLE, each acknowledged by a "200 result=..." status line.
//
// The package covers exactly the command surface the request server needs;
// it is not a general AGI library.
package fastagi
