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

// NativeBackend stores files on the host filesystem using positional I/O.
type NativeBackend struct {
}

func NewNative() *NativeBackend {
	return &NativeBackend{}
}

type nativeFile struct {
	f      *os.File
	closed bool
}

func (b *NativeBackend) Open(path string, write bool) (File, error) {
	p := filepath.FromSlash(path)
	if write {
		os.MkdirAll(filepath.Dir(p), 0750)
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0640)
		if err != nil {
			return nil, err
		}
		return &nativeFile{f: f}, nil
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return &nativeFile{f: f}, nil
}

func (n *nativeFile) Seek(offset int64, whence Whence) (int64, error) {
	if n.closed {
		return 0, ErrClosed
	}
	pos, err := n.f.Seek(offset, int(whence))
	if err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, ErrNegativeOffset
	}
	return pos, nil
}

func (n *nativeFile) Read(p []byte) (int, error) {
	if n.closed {
		return 0, ErrClosed
	}
	return n.f.Read(p)
}

func (n *nativeFile) Write(p []byte) error {
	if n.closed {
		return ErrClosed
	}
	return writeFull(n.f.Write, p)
}

func (n *nativeFile) Truncate(size int64) error {
	if n.closed {
		return ErrClosed
	}
	if size < 0 {
		size = 0
	}
	// os.File.Truncate does not move the position; callers re-seek.
	return n.f.Truncate(size)
}

func (n *nativeFile) Flush() error {
	if n.closed {
		return ErrClosed
	}
	return n.f.Sync()
}

func (n *nativeFile) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	return n.f.Close()
}

func (b *NativeBackend) Remove(path string) bool {
	return os.Remove(filepath.FromSlash(path)) == nil
}

func (b *NativeBackend) Mkdir(path string) bool {
	return os.MkdirAll(filepath.FromSlash(path), 0750) == nil
}

func (b *NativeBackend) Exists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}

func (b *NativeBackend) CopyFile(src string, dst string) error {
	in, err := os.Open(filepath.FromSlash(src))
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(filepath.FromSlash(dst))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (b *NativeBackend) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, DirEntry{
			Name:        e.Name(),
			IsFile:      e.Type().IsRegular(),
			IsDirectory: e.IsDir(),
		})
	}
	return result, nil
}

func (b *NativeBackend) CWD() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.ToSlash(wd)
}

func (b *NativeBackend) TempDir() string {
	return filepath.ToSlash(os.TempDir())
}
