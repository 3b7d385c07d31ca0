// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "filters/")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C integrity checks for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// S3 offers no compare-and-swap, so concurrent writers can clobber a
// shared manifest. CommitStore layers a DynamoDB commit log over the
// store to serialize updates to one designated name.
package s3
