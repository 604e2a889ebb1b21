// Package emdisk and its subpackages implement an external-memory
// block I/O substrate: asynchronous multi-disk block request dispatch
// (ioqueue, file), a logical-to-physical block allocator (block), a
// double-buffered streaming layer (stream) atop a typed block cache
// (cache), and a loser-tree multiway merger (merge) that powers
// external sort (extsort) and an external priority queue (pqueue).
//
// Glue utilities (semaphore, onoff switch, refcounted handle, aligned
// allocator, winner tree) live in xsync.
package emdisk
