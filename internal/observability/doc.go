// Package observability records what the task graph service does as a JSON
// Lines event log and derives metrics and alerts from it on demand.
package observability
