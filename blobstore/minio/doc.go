// Package minio provides a BlobStore implementation using the MinIO
// client.
//
// MinIO is a high-performance, S3-compatible object storage system. The
// official MinIO Go client also works against other S3-compatible
// systems like Ceph, SeaweedFS, and Garage, with no AWS dependencies.
//
// # Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "filters/")
package minio
