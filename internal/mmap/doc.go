// Package mmap provides read-only memory-mapped file access for local
// result-file blobs.
package mmap
