// Package encoding builds multi-rendition HLS encode plans from the quality
// catalog and drives the external transcoder to completion or failure.
//
// A Plan assigns contiguous stream indices in catalog order, so adaptive
// players always see the lowest resolution at index 0. The Driver performs a
// single batch invocation per job and reports exactly one terminal outcome;
// it never retries and leaves partial output for the orchestrator to handle.
package encoding
