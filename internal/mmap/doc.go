// Package mmap provides read-only memory-mapped files for zero-copy loads.
//
// A File aliases kernel pages rather than heap memory, so a mapped snapshot
// costs no resident memory until its pages are touched. Any view into Bytes
// becomes invalid once the File is closed.
package mmap
