// Package offload migrates finished HLS rendition sets to object storage.
//
// Uploads within one job run concurrently under a configured limit, but the
// offload as a whole is all-or-nothing: a single failed file aborts it and
// local artifacts are kept as the fallback copy. Only a fully successful
// offload removes the local rendition directory and source file.
package offload
