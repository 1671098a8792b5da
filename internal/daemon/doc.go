// Package daemon hosts the long-running coordination service: the HTTP
// API, the periodic stall sweep, and single-instance enforcement.
package daemon
