//go:build linux
// +build linux

// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package fuse

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/ostafen/trsdisk/internal/logger"
	"github.com/ostafen/trsdisk/internal/trsdos"
)

// errNoSpace mirrors POSIX ENOSPC; bazil.org/fuse has no named constant
// for it, unlike fuse.ENOENT and fuse.EEXIST.
const errNoSpace = fuse.Errno(28)

// TrsFS is the FUSE filesystem exposing a trsdos.FileSystem as a mount
// point. Writes are buffered in memory and only committed to the disk
// image on Release, mirroring the write-back contract of the original
// prototype: every Write and the final Release re-check free space
// against everything still buffered for OTHER open files, so a write
// that would overflow the disk fails before it ever touches a TRSDOS
// structure.
type TrsFS struct {
	fs  *trsdos.FileSystem
	log *logger.Logger

	mtx     sync.Mutex
	buffers map[string][]byte // posix path -> buffered content
	failed  map[string]bool
}

// NewTrsFS wraps tfs for FUSE serving.
func NewTrsFS(tfs *trsdos.FileSystem, log *logger.Logger) *TrsFS {
	return &TrsFS{
		fs:      tfs,
		log:     log,
		buffers: make(map[string][]byte),
		failed:  make(map[string]bool),
	}
}

func (t *TrsFS) Root() (fs.Node, error) {
	return &dir{fs: t}, nil
}

// posixName maps a TRSDOS "NAME/EXT" entry to its POSIX "NAME.EXT"
// spelling, per §4.9.
func posixName(e trsdos.DirEntry) string {
	if e.Ext == "" {
		return e.Name
	}
	return e.Name + "." + e.Ext
}

// trsdosName maps a POSIX filename to the spelling the filesystem's
// lookups accept: a dotted "NAME.EXT" passes through unchanged, and a
// name without a dot gets a trailing "/".
func trsdosName(posix string) string {
	if strings.Contains(posix, ".") {
		return posix
	}
	return posix + "/"
}

// dir implements fs.Node, fs.HandleReadDirAller and fs.NodeCreater for the
// single flat directory TRSDOS exposes.
type dir struct {
	fs *TrsFS
}

func (d *dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0755
	return nil
}

func (d *dir) lookupBuffer(name string) ([]byte, bool) {
	d.fs.mtx.Lock()
	defer d.fs.mtx.Unlock()
	buf, ok := d.fs.buffers["/"+name]
	return buf, ok
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if buf, ok := d.lookupBuffer(name); ok {
		return &file{fs: d.fs, posixName: name, size: uint64(len(buf))}, nil
	}

	for _, e := range d.fs.fs.ListFiles() {
		if posixName(e) == name {
			return &file{fs: d.fs, posixName: name, size: uint64(e.Size), invisible: e.Invisible}, nil
		}
	}
	return nil, fuse.ENOENT
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mtx.Lock()
	var buffered []string
	for path := range d.fs.buffers {
		buffered = append(buffered, strings.TrimPrefix(path, "/"))
	}
	d.fs.mtx.Unlock()

	seen := make(map[string]bool)
	var dirents []fuse.Dirent
	for _, e := range d.fs.fs.ListFiles() {
		name := posixName(e)
		if seen[name] {
			continue
		}
		seen[name] = true
		dirents = append(dirents, fuse.Dirent{Name: name, Type: fuse.DT_File})
	}
	for _, name := range buffered {
		if seen[name] {
			continue
		}
		seen[name] = true
		dirents = append(dirents, fuse.Dirent{Name: name, Type: fuse.DT_File})
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name < dirents[j].Name })
	return dirents, nil
}

// Create buffers a new, empty file; nothing touches the disk image until
// Release.
func (d *dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	d.fs.mtx.Lock()
	d.fs.buffers["/"+req.Name] = []byte{}
	delete(d.fs.failed, "/"+req.Name)
	d.fs.mtx.Unlock()

	f := &file{fs: d.fs, posixName: req.Name}
	return f, f, nil
}

// Remove deletes both the in-memory buffer (if any) and the on-disk
// TRSDOS entry.
func (d *dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	d.fs.mtx.Lock()
	delete(d.fs.buffers, "/"+req.Name)
	d.fs.mtx.Unlock()

	if err := d.fs.fs.DeleteFile(trsdosName(req.Name)); err != nil {
		if trsdos.IsKind(err, trsdos.ErrNotFound) {
			return nil
		}
		return fuse.EIO
	}
	return nil
}

// file implements fs.Node, fs.HandleReader, fs.HandleWriter and
// fs.HandleReleaser.
type file struct {
	fs        *TrsFS
	posixName string
	size      uint64
	invisible bool
}

func (f *file) path() string { return "/" + f.posixName }

func (f *file) Attr(ctx context.Context, a *fuse.Attr) error {
	f.fs.mtx.Lock()
	buf, buffered := f.fs.buffers[f.path()]
	f.fs.mtx.Unlock()

	a.Mode = 0644
	if buffered {
		a.Size = uint64(len(buf))
	} else {
		a.Size = f.size
	}
	now := time.Now()
	a.Mtime, a.Ctime, a.Atime = now, now, now
	if f.invisible {
		a.Flags = 0x8000 // UF_HIDDEN, surfaced for BSD/macOS FUSE clients
	}
	return nil
}

// Open loads the file into the write-back buffer when opened for
// writing, matching the prototype's behavior of only buffering on
// demand.
func (f *file) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if req.Flags.IsWriteOnly() || req.Flags.IsReadWrite() {
		f.fs.mtx.Lock()
		_, ok := f.fs.buffers[f.path()]
		f.fs.mtx.Unlock()
		if !ok {
			data, err := f.fs.fs.ReadFile(trsdosName(f.posixName))
			if err != nil {
				data = nil
			}
			f.fs.mtx.Lock()
			f.fs.buffers[f.path()] = append([]byte{}, data...)
			f.fs.mtx.Unlock()
		}
	}
	return f, nil
}

func (f *file) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	f.fs.mtx.Lock()
	buf, buffered := f.fs.buffers[f.path()]
	f.fs.mtx.Unlock()

	var data []byte
	if buffered {
		data = buf
	} else {
		d, err := f.fs.fs.ReadFile(trsdosName(f.posixName))
		if err != nil {
			resp.Data = []byte{}
			return nil
		}
		data = d
	}

	off := int(req.Offset)
	if off >= len(data) {
		resp.Data = []byte{}
		return nil
	}
	end := off + req.Size
	if end > len(data) {
		end = len(data)
	}
	resp.Data = data[off:end]
	return nil
}

// Write appends/overwrites into the buffer, re-checking free space
// against everything buffered for OTHER files (the write-back contract).
func (f *file) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	f.fs.mtx.Lock()
	defer f.fs.mtx.Unlock()

	buf := f.fs.buffers[f.path()]
	end := int(req.Offset) + len(req.Data)

	var otherBuffered int
	for p, b := range f.fs.buffers {
		if p != f.path() {
			otherBuffered += len(b)
		}
	}
	free := f.fs.fs.GetFreeSpace()
	if int64(otherBuffered+end) > free {
		f.fs.failed[f.path()] = true
		delete(f.fs.buffers, f.path())
		return errNoSpace
	}

	if end > len(buf) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[req.Offset:], req.Data)
	f.fs.buffers[f.path()] = buf
	delete(f.fs.failed, f.path())

	resp.Size = len(req.Data)
	return nil
}

// Release commits the buffer to the TRSDOS filesystem, per §4.9's final
// free-space check before the write actually lands.
func (f *file) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	f.fs.mtx.Lock()
	buf, ok := f.fs.buffers[f.path()]
	var otherBuffered int
	for p, b := range f.fs.buffers {
		if p != f.path() {
			otherBuffered += len(b)
		}
	}
	f.fs.mtx.Unlock()
	if !ok {
		return nil
	}

	if int64(otherBuffered+len(buf)) > f.fs.fs.GetFreeSpace() {
		f.fs.log.Warnf("fuse: release %s: disk full, dropping buffered write", f.posixName)
		f.fs.mtx.Lock()
		f.fs.failed[f.path()] = true
		delete(f.fs.buffers, f.path())
		f.fs.mtx.Unlock()
		return nil
	}

	if err := f.fs.fs.WriteFile(trsdosName(f.posixName), buf); err != nil {
		f.fs.log.Warnf("fuse: release %s: %v", f.posixName, err)
		f.fs.mtx.Lock()
		f.fs.failed[f.path()] = true
		delete(f.fs.buffers, f.path())
		f.fs.mtx.Unlock()
		return nil
	}

	f.fs.mtx.Lock()
	delete(f.fs.buffers, f.path())
	f.fs.mtx.Unlock()
	return nil
}
