// Copyright 2015 Aleksandr Demakin. All rights reserved.

package mmf

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFileSize = 128 * 1024

func createTestFile(t *testing.T) *os.File {
	data := make([]byte, testFileSize)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "test.bin")
	require.NoError(t, os.WriteFile(path, data, 0666))
	file, err := os.OpenFile(path, os.O_RDWR, 0666)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return file
}

func TestMmfOpen(t *testing.T) {
	a := assert.New(t)
	file := createTestFile(t)
	mr, err := NewMemoryRegion(file, MEM_READ_ONLY, 0, testFileSize)
	if !a.NoError(err) {
		return
	}
	a.NoError(mr.Close())
	mr, err = NewMemoryRegion(file, MEM_READ_ONLY, 0, 0)
	if a.NoError(err) {
		a.Equal(testFileSize, mr.Size())
		a.NoError(mr.Close())
	}
	mr, err = NewMemoryRegion(file, MEM_READ_ONLY, 67746, testFileSize-67746)
	if a.NoError(err) {
		a.NoError(mr.Close())
	}
	_, err = NewMemoryRegion(file, MEM_READ_ONLY, testFileSize-1024, 1025)
	a.Error(err)
	_, err = NewMemoryRegion(file, 0x100, 0, 0)
	a.Error(err)
}

func TestMmfOpenReadonly(t *testing.T) {
	const offset = 67746
	file := createTestFile(t)
	region, err := NewMemoryRegion(file, MEM_READ_ONLY, offset, 1024)
	if !assert.NoError(t, err) {
		return
	}
	defer region.Close()
	assert.Equal(t, 1024, region.Size())
	for i := 0; i < 1024; i++ {
		if !assert.Equal(t, byte(i+offset), region.Data()[i]) {
			break
		}
	}
}

func TestMmfSharedWrite(t *testing.T) {
	a := assert.New(t)
	file := createTestFile(t)
	first, err := NewMemoryRegion(file, MEM_READWRITE, 0, 4096)
	if !a.NoError(err) {
		return
	}
	defer first.Close()
	second, err := NewMemoryRegion(file, MEM_READWRITE, 0, 4096)
	if !a.NoError(err) {
		return
	}
	defer second.Close()
	copy(first.Data(), "shared")
	a.Equal([]byte("shared"), second.Data()[:6])
	a.NoError(first.Flush(false))
}

func TestMmfDoubleClose(t *testing.T) {
	a := assert.New(t)
	region, err := NewMemoryRegion(createTestFile(t), MEM_READWRITE, 0, 0)
	if !a.NoError(err) {
		return
	}
	a.NoError(region.Close())
	a.NoError(region.Close())
	a.Nil(region.Data())
}

func TestMmfReaderWriter(t *testing.T) {
	a := assert.New(t)
	region, err := NewMemoryRegion(createTestFile(t), MEM_READWRITE, 0, 64)
	if !a.NoError(err) {
		return
	}
	defer region.Close()
	writer := NewMemoryRegionWriter(region)
	n, err := writer.WriteAt([]byte("hello"), 10)
	a.NoError(err)
	a.Equal(5, n)
	n, err = writer.WriteAt([]byte("overflow"), 60)
	a.Equal(io.EOF, err)
	a.Equal(4, n)
	reader := NewMemoryRegionReader(region)
	buf := make([]byte, 5)
	n, err = reader.ReadAt(buf, 10)
	a.NoError(err)
	a.Equal("hello", string(buf[:n]))
	n, err = reader.ReadAt(buf, 60)
	a.Equal(io.EOF, err)
	a.Equal("over", string(buf[:n]))
	_, err = reader.ReadAt(buf, 64)
	a.Equal(io.EOF, err)
}
