// Package resdb extracts results from solver output databases.
//
// A result database is a set of append-only binary files, each carrying a
// validated header and a catalog of object groups, nested item groups, and
// variable references addressing raw numeric payloads by byte position.
// The extractor indexes many files into one forest and reads payloads
// lazily, so opening gigabytes of results costs only the catalog parse.
//
// # Quick Start
//
//	ctx := context.Background()
//	ex, _ := resdb.New(resdb.WithCacheCapacity(256 << 20))
//	defer ex.Close()
//
//	ex.AddFile(ctx, "run1/response.frs")
//	ex.AddFile(ctx, "run2/response.frs.zst") // staged + decompressed
//
//	for _, m := range ex.Search(resdb.NewSearchQuery("Beam", "Stress", "Axial")) {
//	    buf, _ := ex.Materialize(ctx, m.Entry)
//	    fmt.Println(m.Descriptor, frs.Float64s(buf))
//	}
//
// # Remote Files
//
// With a blob store configured, references resolve against it and staged
// copies land in the stage directory:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "results-bucket", "runs/")
//	ex, _ := resdb.New(resdb.WithStore(store), resdb.WithRegistry(reg))
//	ex.AddRun(ctx, "run-2031")
//
// # Memory Model
//
// Payload buffers are independent of the index: ReleaseMemoryBlocks drops
// every materialized block while all entries, descriptors, and offsets
// stay valid, and the next Materialize reads from disk (or the block
// cache) again. A resource controller can cap the total bytes held.
//
// # Key Features
//
//   - Per-file byte-order detection; payloads served canonical little-endian
//   - Tag + CRC32 header validation; corrupt files contribute nothing
//   - Path-descriptor search with wildcard ids and level-prefix matching
//   - Lazily materialized, independently evictable payload blocks
//   - Persistent catalog cache for fast re-opens
//   - Blob-store staging with zstd/gzip/lz4 decompression
package resdb
