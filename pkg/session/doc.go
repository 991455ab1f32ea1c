// Package session serializes access to stored wizard runs.
//
// Hosts that serve one run to many requests (HTTP, MCP) load, transform and
// save snapshots through a Manager so concurrent requests for the same run id
// never interleave. A DistributedLocker extends the guarantee across replicas.
package session
