package fs

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Fault defines failure behavior for files matching a rule.
type Fault struct {
	FailOpen      bool  // Open/OpenFile fails outright.
	FailReadAfter int64 // Reads fail once cumulative bytes would exceed this. <= 0 disables.
	FailOnClose   bool
	Err           error // Error to inject; a generic one is used when nil.
}

// FaultyFS is a FileSystem wrapper that injects read-side errors, used to
// exercise corrupt-file and short-read paths without crafting broken files.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault // filename substring -> fault
}

// NewFaultyFS creates a FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:    fsys,
		rules: make(map[string]Fault),
	}
}

// AddRule registers a fault for files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

func (f *FaultyFS) lookup(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) open(name string, openFn func() (File, error)) (File, error) {
	fault, ok := f.lookup(name)
	if ok && fault.FailOpen {
		return nil, faultErr(fault, "injected open error")
	}
	file, err := openFn()
	if err != nil {
		return nil, err
	}
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Open(name string) (File, error) {
	return f.open(name, func() (File, error) { return f.FS.Open(name) })
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return f.open(name, func() (File, error) { return f.FS.OpenFile(name, flag, perm) })
}

func (f *FaultyFS) Create(name string) (File, error) {
	return f.open(name, func() (File, error) { return f.FS.Create(name) })
}

func (f *FaultyFS) Remove(name string) error             { return f.FS.Remove(name) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.FS.ReadDir(name) }

type faultyFile struct {
	File
	fault Fault

	mu   sync.Mutex
	read int64
}

func (ff *faultyFile) allow(n int) error {
	if ff.fault.FailReadAfter <= 0 {
		return nil
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.read+int64(n) > ff.fault.FailReadAfter {
		return faultErr(ff.fault, "injected read error")
	}
	ff.read += int64(n)
	return nil
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if err := ff.allow(len(p)); err != nil {
		return 0, err
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if err := ff.allow(len(p)); err != nil {
		return 0, err
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		ff.File.Close()
		return faultErr(ff.fault, "injected close error")
	}
	return ff.File.Close()
}

func faultErr(fault Fault, msg string) error {
	if fault.Err != nil {
		return fault.Err
	}
	return fmt.Errorf("%s", msg)
}
