// Package store provides the shared coordination store all ownership and
// liveness components persist through.
//
// The Store interface is a narrow hash/list/kv surface. SQLite backs the
// durable implementation (a single database file on a shared filesystem so
// every agent process sees the same state). Fallback is a disposable
// in-process cache, and Resilient composes the two: when the durable backend
// fails it logs and degrades to the cache rather than surfacing the outage
// to agents. Writes made while degraded are not reconciled back — the store
// is available over consistent.
//
// Components own disjoint namespaces (claims, resource-locks, zones,
// heartbeats, cloud-agents, shadow-registry); the store never interprets the
// values it holds.
package store
