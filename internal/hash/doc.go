// Package hash provides the checksum primitives behind snapshot integrity.
//
// Every integrity checksum in the repository is CRC32-Castagnoli (CRC32C),
// the polynomial used by iSCSI, RocksDB and LevelDB. It detects accidental
// corruption only; it is not a defense against tampering.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk)
//	sum := h.Sum32()
package hash
