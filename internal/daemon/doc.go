// Package daemon hosts the long-running vodmill process: single-instance
// locking, orphaned-job reconciliation at startup, and the HTTP API that
// accepts uploads, reports job state, streams lifecycle events, and serves
// locally retained renditions.
package daemon
