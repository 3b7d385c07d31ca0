// Package cache provides a byte-budgeted LRU used to keep hot snapshot
// blobs in memory. Values are treated as immutable; callers must not write
// into slices handed back by Get.
package cache
