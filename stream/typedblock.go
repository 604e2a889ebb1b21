// Package stream implements forward-only buffered reading and writing
// of typed element sequences over cache-managed blocks, the Go
// analogue of STXXL's stream layer (stream::vector_iterator2stream /
// materialize) built on top of this module's cache and block
// packages instead of STXXL's own buffered_reader/writer.
package stream

import "unsafe"

// asSlice reinterprets a raw block buffer as a []T, the same
// zero-copy reinterpretation STXXL's typed_block does via
// reinterpret_cast. T must be a fixed-layout value type containing no
// pointers, slices, maps, or strings — the same restriction STXXL's
// typed_block places on POD element types, since the bytes are what
// actually get written to and read from storage.
func asSlice[T any](buf []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil
	}
	n := len(buf) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}

// elementsPerBlock returns how many T values fit in a blockSize-byte
// block.
func elementsPerBlock[T any](blockSize int64) int {
	var zero T
	size := int64(unsafe.Sizeof(zero))
	if size == 0 {
		return 0
	}
	return int(blockSize / size)
}
