// Package persistence stores filters durably.
//
// Three layers build on each other:
//
//   - SaveFilter/LoadFilter write a single filter to a file in its wire
//     format, atomically. LoadBloomFilterMmap serves a plain filter
//     straight from a read-only mapping of such a file.
//   - WriteSnapshot/ReadSnapshot wrap the wire format in a sectioned
//     container with per-section checksums, optional compression, and a
//     codec-encoded info block that can be listed without decoding the
//     filter.
//   - Manager keeps a named catalog of snapshot generations on any
//     blobstore.BlobStore and rotates old generations out.
package persistence
