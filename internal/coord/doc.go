// Package coord defines the shared error taxonomy for coordination
// components.
//
// Conflicts and illegal transitions are frequent, expected outcomes of
// normal agent activity; they must stay distinguishable from infrastructure
// failures all the way to the HTTP response. Components tag errors with the
// sentinel markers here and handlers map them to status codes in one place.
package coord
