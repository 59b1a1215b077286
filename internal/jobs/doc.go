// Package jobs persists transcode jobs in SQLite and owns every status
// transition. Jobs are created in processing state, move exactly once to
// finished or failed, and may be deleted in any state. ReconcileStuck runs at
// daemon start to fail jobs orphaned by a previous process instance.
package jobs
