/*
Copyright (C) 2026  The GoatDB Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package backend

import "io"
import "os"
import "path/filepath"

// RandomAccessBackend targets platforms whose file API is position-less:
// every read and write names an absolute offset and no kernel-side cursor
// exists. The cursor the log format needs is kept in userspace instead.
// On the host it runs on pread/pwrite and never calls the kernel seek.
type RandomAccessBackend struct {
	NativeBackend
}

func NewRandomAccess() *RandomAccessBackend {
	return &RandomAccessBackend{}
}

type randomAccessFile struct {
	f      *os.File
	pos    int64
	closed bool
}

func (b *RandomAccessBackend) Open(path string, write bool) (File, error) {
	p := filepath.FromSlash(path)
	if write {
		os.MkdirAll(filepath.Dir(p), 0750)
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0640)
		if err != nil {
			return nil, err
		}
		return &randomAccessFile{f: f}, nil
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return &randomAccessFile{f: f}, nil
}

func (r *randomAccessFile) size() (int64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (r *randomAccessFile) Seek(offset int64, whence Whence) (int64, error) {
	if r.closed {
		return 0, ErrClosed
	}
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = r.pos
	case SeekEnd:
		length, err := r.size()
		if err != nil {
			return 0, err
		}
		base = length
	}
	pos := base + offset
	if pos < 0 {
		return 0, ErrNegativeOffset
	}
	r.pos = pos
	return pos, nil
}

func (r *randomAccessFile) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	n, err := r.f.ReadAt(p, r.pos)
	r.pos += int64(n)
	if err == io.EOF && n > 0 {
		// partial reads are fine; EOF surfaces on the next call
		return n, nil
	}
	return n, err
}

func (r *randomAccessFile) Write(p []byte) error {
	if r.closed {
		return ErrClosed
	}
	err := writeFull(func(p []byte) (int, error) {
		n, err := r.f.WriteAt(p, r.pos)
		r.pos += int64(n)
		return n, err
	}, p)
	return err
}

func (r *randomAccessFile) Truncate(size int64) error {
	if r.closed {
		return ErrClosed
	}
	if size < 0 {
		size = 0
	}
	return r.f.Truncate(size)
}

func (r *randomAccessFile) Flush() error {
	if r.closed {
		return ErrClosed
	}
	return r.f.Sync()
}

func (r *randomAccessFile) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}
