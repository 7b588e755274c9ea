// Package blobstore abstracts where result files live before extraction.
//
// Store is the interface for reading and writing result-file blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, blobs served from memory mappings
//   - MemoryStore: in-memory, for tests and ephemeral runs
//   - CachingStore: block-level read cache over any other Store
//   - minio.Store: any S3-compatible endpoint via the MinIO client
//   - s3.Store: Amazon S3 with range reads and managed uploads
//
// Remote blobs are not parsed in place: the stage package downloads them
// to local disk first, and the extractor opens the staged copy.
package blobstore
