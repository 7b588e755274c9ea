// Package frs reads and writes result files: a fixed header with tag,
// endian marker, and CRC32 tag checksum, followed by a catalog describing
// object groups, nested item groups, and variable references with the file
// offsets of their numeric payloads.
//
// Opening a file parses and validates header and catalog only; payloads
// stay on disk and are fetched individually through ReadPayload. Byte
// order is detected per file from the endian marker, and payload cells
// are normalized to little-endian on read.
//
// A file that fails any validation step contributes nothing: Open returns
// a typed error (HeaderError, ChecksumMismatchError, CatalogError) and no
// partial catalog.
package frs
