// Package api defines the JSON wire types shared by the daemon's HTTP
// server and its clients.
package api
