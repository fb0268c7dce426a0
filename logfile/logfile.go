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
	"errors"
	"path"
	"sync"

	"github.com/goatplatform/goatdb/backend"
)

/*

append-only JSON log

A log file is a sequence of frames: the UTF-8 bytes of one JSON object
followed by a newline. Runs of extra newlines between frames are tolerated.
A batch append writes "\n" + rec1 + "\n\n" + rec2 + ... + "\n" in one call,
so a torn prior write is isolated by its missing trailing newline and the
next batch resynchronizes on its own leading newline.

Scanning tracks the last good offset, the byte just past the last frame
that parsed. On a writable log, a torn or corrupt tail is truncated back
to that offset; records are deduplicated by id against everything the
scan has seen.

*/

var (
	// ErrLogClosed is returned when operating on a closed log handle.
	ErrLogClosed = errors.New("log handle closed")

	// ErrWriteNotPermitted is returned when appending to a read-only log.
	ErrWriteNotPermitted = errors.New("write not permitted on read-only log")
)

const objectBufferPage = 1024

// Options are the construction-time knobs of a log handle.
type Options struct {
	// ReadBufferSize is the size of a cursor's read buffer. Default 1 MiB.
	ReadBufferSize int
	// ScanBatchSize caps how many records a single scan call yields.
	// Default 100.
	ScanBatchSize int
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 1024 * 1024
	}
	if o.ScanBatchSize <= 0 {
		o.ScanBatchSize = 100
	}
	return o
}

// Log is an open log file handle. At most one writable handle may exist
// per file; that discipline is enforced by the caller or the backend.
type Log struct {
	mu       sync.Mutex
	backend  backend.Backend
	file     backend.File
	path     string
	writable bool
	didScan  bool
	known    map[string]struct{}
	opts     Options
	closed   bool
}

// Open opens the log at p, creating it (and its parent directory) iff
// write. The file is not scanned.
func Open(b backend.Backend, p string, write bool, opts Options) (*Log, error) {
	if write {
		if dir := path.Dir(p); dir != "." && dir != "/" {
			b.Mkdir(dir)
		}
	}
	f, err := b.Open(p, write)
	if err != nil {
		return nil, err
	}
	return &Log{
		backend:  b,
		file:     f,
		path:     p,
		writable: write,
		known:    map[string]struct{}{},
		opts:     opts.withDefaults(),
	}, nil
}

func (l *Log) Path() string { return l.path }

func (l *Log) Writable() bool { return l.writable }

// DidScan reports whether a scan has verified (and, if needed, truncated)
// the tail since open.
func (l *Log) DidScan() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.didScan
}

// Contains reports whether a record id is already known to be persisted.
// Meaningful once a full scan has run.
func (l *Log) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.known[id]
	return ok
}

// Append filters records against the known-id set and writes the survivors
// in one framed batch. The write is buffered by the OS; call Flush for
// durability. If the tail has not been verified yet, the whole file is
// scanned first so damaged bytes cannot survive past an append.
func (l *Log) Append(records []Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if !l.writable {
		return ErrWriteNotPermitted
	}
	if !l.didScan {
		if err := l.driveToEnd(); err != nil {
			return err
		}
	}

	var buf []byte
	for _, rec := range records {
		if rec.ID != "" {
			if _, dup := l.known[rec.ID]; dup {
				continue
			}
			l.known[rec.ID] = struct{}{}
		}
		if len(buf) == 0 {
			// resynchronization byte ahead of the batch
			buf = append(buf, '\n')
		} else {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, rec.Raw...)
	}
	if len(buf) == 0 {
		return nil
	}
	buf = append(buf, '\n')

	if _, err := l.file.Seek(0, backend.SeekEnd); err != nil {
		return err
	}
	return l.file.Write(buf)
}

// driveToEnd scans the whole file with a throwaway cursor, populating the
// known-id set and truncating a damaged tail. Caller holds l.mu.
func (l *Log) driveToEnd() error {
	c, err := l.startCursor()
	if err != nil {
		return err
	}
	for {
		_, done, err := c.scan()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Flush invokes the backend durability primitive.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	return l.file.Flush()
}

// Close releases the backend file. Operations on the handle or any of its
// cursors fail with ErrLogClosed afterwards.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.known = nil
	return l.file.Close()
}
