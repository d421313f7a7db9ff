package sink

import (
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// memFS serves the templated migration SQL to golang-migrate's iofs
// source without writing temporary files. Only the flat layout iofs
// needs is supported: a root directory of named files.
type memFS struct {
	files map[string]string
}

func newMemFS(files map[string]string) *memFS {
	return &memFS{files: files}
}

func (m *memFS) Open(name string) (fs.File, error) {
	name = strings.TrimPrefix(name, "/")

	if name == "." || name == "" {
		return &memDir{fs: m}, nil
	}

	content, ok := m.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}

	return &memFile{
		info:   fileInfo{name: name, size: int64(len(content))},
		Reader: strings.NewReader(content),
	}, nil
}

type memFile struct {
	info fileInfo
	*strings.Reader
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *memFile) Close() error { return nil }

type memDir struct {
	fs      *memFS
	entries []fs.DirEntry
	offset  int
}

func (d *memDir) Stat() (fs.FileInfo, error) { return fileInfo{name: ".", dir: true}, nil }

func (d *memDir) Read([]byte) (int, error) { return 0, fs.ErrInvalid }

func (d *memDir) Close() error { return nil }

func (d *memDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		names := make([]string, 0, len(d.fs.files))
		for name := range d.fs.files {
			names = append(names, name)
		}

		sort.Strings(names)

		d.entries = make([]fs.DirEntry, 0, len(names))
		for _, name := range names {
			d.entries = append(d.entries, fileInfo{name: name, size: int64(len(d.fs.files[name]))})
		}
	}

	if n <= 0 {
		entries := d.entries[d.offset:]
		d.offset = len(d.entries)

		return entries, nil
	}

	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}

	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}

	entries := d.entries[d.offset:end]
	d.offset = end

	return entries, nil
}

// fileInfo doubles as fs.FileInfo and fs.DirEntry for in-memory files.
type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (i fileInfo) Name() string { return i.name }

func (i fileInfo) Size() int64 { return i.size }

func (i fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}

	return 0o644
}

func (i fileInfo) ModTime() time.Time { return time.Time{} }

func (i fileInfo) IsDir() bool { return i.dir }

func (i fileInfo) Sys() interface{} { return nil }

func (i fileInfo) Type() fs.FileMode { return i.Mode().Type() }

func (i fileInfo) Info() (fs.FileInfo, error) { return i, nil }
