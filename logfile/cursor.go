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
	"bytes"
	"io"

	"github.com/goatplatform/goatdb/backend"
)

// Cursor is a forward-only scan position in a log. It keeps its own file
// offset so appends on the shared handle cannot move it, and a last good
// offset marking the byte just past the last frame that parsed.
type Cursor struct {
	log      *Log
	readBuf  []byte
	window   []byte
	obj      []byte
	readPos  int64
	lastGood int64
	size     int64
	done     bool
}

// StartCursor seeks to the start of the file, records its current length
// and returns a fresh cursor.
func (l *Log) StartCursor() (*Cursor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLogClosed
	}
	return l.startCursor()
}

// startCursor is StartCursor with l.mu held.
func (l *Log) startCursor() (*Cursor, error) {
	size, err := l.file.Seek(0, backend.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := l.file.Seek(0, backend.SeekStart); err != nil {
		return nil, err
	}
	return &Cursor{
		log:     l,
		readBuf: make([]byte, l.opts.ReadBufferSize),
		obj:     make([]byte, 0, objectBufferPage),
		size:    size,
	}, nil
}

// LastGoodOffset returns the byte position just past the last successfully
// parsed frame. It is the authoritative recovery point.
func (c *Cursor) LastGoodOffset() int64 {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	return c.lastGood
}

// Scan produces the next batch of records. It returns done = true once the
// end of the valid prefix is reached; on a writable log a torn or corrupt
// tail has been truncated away by then.
func (c *Cursor) Scan() ([]Record, bool, error) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	if c.log.closed {
		return nil, false, ErrLogClosed
	}
	return c.scan()
}

// scan is Scan with the handle lock held.
func (c *Cursor) scan() ([]Record, bool, error) {
	if c.done {
		return nil, true, nil
	}
	var out []Record
	for {
		if len(c.window) == 0 {
			eof, err := c.refill()
			if err != nil {
				return out, false, err
			}
			if eof {
				if err := c.recoverTail(len(c.obj) > 0); err != nil {
					return out, false, err
				}
				return out, true, nil
			}
		}
		idx := bytes.IndexByte(c.window, '\n')
		if idx < 0 {
			c.appendObj(c.window)
			c.window = nil
			continue
		}
		c.appendObj(c.window[:idx])
		c.window = c.window[idx+1:]
		if len(c.obj) == 0 {
			// empty frame, a batch boundary
			c.lastGood++
			continue
		}
		rec, err := DecodeRecord(c.obj)
		if err != nil {
			// corruption at the tail ends the valid prefix
			if err := c.recoverTail(true); err != nil {
				return out, false, err
			}
			return out, true, nil
		}
		c.lastGood += int64(len(c.obj)) + 1
		c.obj = c.obj[:0]
		if rec.ID != "" {
			c.log.known[rec.ID] = struct{}{}
		}
		out = append(out, rec)
		if len(out) >= c.log.opts.ScanBatchSize {
			return out, false, nil
		}
	}
}

// refill reads the next chunk at the cursor's own offset. The explicit
// seek keeps the cursor independent of appends on the shared file.
func (c *Cursor) refill() (eof bool, err error) {
	if _, err := c.log.file.Seek(c.readPos, backend.SeekStart); err != nil {
		return false, err
	}
	n, err := c.log.file.Read(c.readBuf)
	if n > 0 {
		c.readPos += int64(n)
		c.window = c.readBuf[:n]
		return false, nil
	}
	if err == nil || err == io.EOF {
		return true, nil
	}
	return false, err
}

// recoverTail finishes the scan. With damaged = true and a writable log,
// the file is cut back to the last good offset.
func (c *Cursor) recoverTail(damaged bool) error {
	c.done = true
	c.log.didScan = true
	c.obj = c.obj[:0]
	c.window = nil
	if damaged && c.log.writable {
		if _, err := c.log.file.Seek(0, backend.SeekEnd); err != nil {
			return err
		}
		if err := c.log.file.Truncate(c.lastGood); err != nil {
			return err
		}
	}
	return nil
}

// appendObj grows the object buffer in whole pages to keep reallocation
// off the per-byte path.
func (c *Cursor) appendObj(p []byte) {
	need := len(c.obj) + len(p)
	if need > cap(c.obj) {
		pages := (need + objectBufferPage - 1) / objectBufferPage
		grown := make([]byte, len(c.obj), pages*objectBufferPage)
		copy(grown, c.obj)
		c.obj = grown
	}
	c.obj = append(c.obj, p...)
}
