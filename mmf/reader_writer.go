// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mmf

import "io"

// MemoryRegionReader reads the data of a memory region at arbitrary offsets.
// It holds a reference to the region, so the former can't be gc'ed.
// Reads are not synchronized with other users of the memory.
type MemoryRegionReader struct {
	region *MemoryRegion
}

// NewMemoryRegionReader creates a new reader for the given region.
func NewMemoryRegionReader(region *MemoryRegion) *MemoryRegionReader {
	return &MemoryRegionReader{region: region}
}

// ReadAt is to implement io.ReaderAt.
func (r *MemoryRegionReader) ReadAt(p []byte, off int64) (n int, err error) {
	data := r.region.Data()
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n = copy(p, data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// MemoryRegionWriter writes into a memory region.
// It holds a reference to the region, so the former can't be gc'ed.
type MemoryRegionWriter struct {
	region *MemoryRegion
}

// NewMemoryRegionWriter creates a new writer for the given region.
func NewMemoryRegionWriter(region *MemoryRegion) *MemoryRegionWriter {
	return &MemoryRegionWriter{region: region}
}

// WriteAt is to implement io.WriterAt.
func (w *MemoryRegionWriter) WriteAt(p []byte, off int64) (n int, err error) {
	data := w.region.Data()
	if off < 0 {
		return 0, io.ErrShortWrite
	}
	if off < int64(len(data)) {
		n = copy(data[off:], p)
	}
	if n < len(p) {
		err = io.EOF
	}
	return
}
