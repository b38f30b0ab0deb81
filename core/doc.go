// Package core contains the shared domain types of TaskPilot: tasks produced
// by goal decomposition, per-attempt records, task and goal results, the
// thinking trace and the error taxonomy used across the execution pipeline.
//
// The package is intentionally free of behavior beyond small value helpers so
// that every other package (agent, tool, memory, ledger, reason) can depend
// on it without cycles.
package core
