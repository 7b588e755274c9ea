// Package hash provides hardware-accelerated checksums for data integrity.
//
// Staged result files and object-store uploads are fingerprinted with
// CRC32-Castagnoli (CRC32C): it is hardware accelerated on x86 (SSE4.2)
// and ARM (CRC extension), and it is the checksum S3 validates natively.
//
// Result-file headers use CRC32-IEEE instead; that choice is fixed by the
// file format, not by this package.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
