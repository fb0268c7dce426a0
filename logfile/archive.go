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
package logfile

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/goatplatform/goatdb/backend"
)

// Cold logs can be compacted into compressed archives next to the live
// format: <name>.jsonlog becomes <name>.jsonlog.gz / .xz / .lz4. Archives
// keep the frame layout, so replay is the same newline scan behind a
// decompressor.

var ErrUnknownCodec = errors.New("unknown archive codec")

// backendReader and backendWriter adapt a backend file to the io interfaces.
type backendReader struct{ f backend.File }

func (r backendReader) Read(p []byte) (int, error) { return r.f.Read(p) }

type backendWriter struct{ f backend.File }

func (w backendWriter) Write(p []byte) (int, error) {
	if err := w.f.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func newCompressor(codec string, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case "gz":
		return gzip.NewWriter(w), nil
	case "xz":
		return xz.NewWriter(w)
	case "lz4":
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
}

func newDecompressor(codec string, r io.Reader) (io.Reader, error) {
	switch codec {
	case "gz":
		return gzip.NewReader(r)
	case "xz":
		return xz.NewReader(r)
	case "lz4":
		return lz4.NewReader(r), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
}

// Archive compresses the log at p into p+"."+codec and removes the
// original. The archive is staged under a temporary name first so a crash
// mid-compression never leaves a half-written archive in place.
func Archive(b backend.Backend, p string, codec string, tmpName string) error {
	src, err := b.Open(p, false)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := p + "." + codec + "." + tmpName
	dst, err := b.Open(tmp, true)
	if err != nil {
		return err
	}
	zip, err := newCompressor(codec, backendWriter{dst})
	if err != nil {
		dst.Close()
		b.Remove(tmp)
		return err
	}
	bufr := bufio.NewReaderSize(backendReader{src}, 16*1024)
	if _, err := io.Copy(zip, bufr); err != nil {
		dst.Close()
		b.Remove(tmp)
		return err
	}
	if err := zip.Close(); err != nil {
		dst.Close()
		b.Remove(tmp)
		return err
	}
	if err := dst.Flush(); err != nil {
		dst.Close()
		b.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	if err := b.CopyFile(tmp, p+"."+codec); err != nil {
		b.Remove(tmp)
		return err
	}
	b.Remove(tmp)
	b.Remove(p)
	return nil
}

// ReplayArchive streams the records of a compressed archive in order.
// Archives are sealed from fully-scanned logs, so a frame that fails to
// parse ends the replay with an error instead of a silent truncation.
func ReplayArchive(b backend.Backend, p string, codec string, apply func(Record) error) error {
	f, err := b.Open(p, false)
	if err != nil {
		return err
	}
	defer f.Close()
	unzip, err := newDecompressor(codec, backendReader{f})
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(unzip)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		if err := apply(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}
