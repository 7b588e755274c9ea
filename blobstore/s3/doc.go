// Package s3 provides Amazon S3 implementations of the blobstore.Store
// interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "results/")
//	x, _ := resdb.New(resdb.WithStore(store))
//	err = x.AddFile(ctx, "run-42/stress.frs")
//
// # Features
//
//   - Range reads for partial fetches of large result files
//   - Streaming multipart uploads
//   - CRC32C integrity validation on uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// ExpressStore targets S3 Express One Zone directory buckets and adds
// conditional writes (PutIfNotExists) on top of the standard store.
package s3
