// Package workflow orchestrates the transcode job lifecycle from upload
// acceptance to a terminal state.
//
// Each launched job creates its store record synchronously, then runs encode
// and offload on a dedicated goroutine. Completion flows back through an
// explicit finish step rather than nested callbacks, and an in-flight registry
// lets mid-encode deletions turn the eventual completion into a no-op.
package workflow
