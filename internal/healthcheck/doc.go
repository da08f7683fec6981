// Package healthcheck runs the periodic database reachability probe.
package healthcheck
