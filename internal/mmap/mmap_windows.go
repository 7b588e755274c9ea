//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// The view holds its own reference; the mapping handle can go.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, func([]byte) error {
		return windows.UnmapViewOfFile(addr)
	}, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// No madvise equivalent; the page cache handles sequential access well.
	_ = data
	_ = pattern
	return nil
}
