// Package blobstore abstracts where filter snapshots live.
//
// A BlobStore maps flat, slash-separated names to immutable byte blobs.
// The local and memory stores ship with this package; S3-compatible
// backends live in the s3 and minio subpackages, and a bbolt-backed
// store keeps many small snapshots in a single file.
//
// Stores are read-heavy: snapshots are written once per save and opened
// on every load. CachingStore layers an in-process LRU over any backend
// so repeated loads of the same snapshot skip the round trip.
package blobstore
