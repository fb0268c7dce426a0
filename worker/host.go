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
package worker

import (
	"encoding/json"
	"errors"
	"io"
	"log"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/logfile"
)

/*

worker host

The host owns all log handles and cursors and runs the blocking I/O of
the log engine off the interactive thread. Callers only ever hold integer
ids; every request is answered with exactly one response carrying the
request's correlation id, and a missing handle or cursor is an error
response, never a crash.

Scans are pipelined: as soon as a cursor exists (and after every answered
scan) the host speculatively computes the next batch, hiding JSON decode
latency behind disk I/O during startup replay. The speculative batch is
not cancelable; closing the handle just discards its result.

*/

type Host struct {
	backend    backend.Backend
	opts       logfile.Options
	handles    map[uint64]*logfile.Log
	cursors    map[uint64]*hostCursor
	nextHandle uint64
	nextCursor uint64
}

type hostCursor struct {
	handle uint64
	cur    *logfile.Cursor
	next   chan scanResult
	done   bool
}

type scanResult struct {
	records []logfile.Record
	done    bool
	err     error
}

func NewHost(b backend.Backend, opts logfile.Options) *Host {
	return &Host{
		backend: b,
		opts:    opts,
		handles: map[uint64]*logfile.Log{},
		cursors: map[uint64]*hostCursor{},
	}
}

// Serve processes requests from t until the transport closes. The host is
// single-threaded; requests are handled strictly in arrival order.
func (h *Host) Serve(t Transport) error {
	for {
		msg, err := t.Receive()
		if err != nil {
			if errors.Is(err, ErrTransportClosed) {
				return nil
			}
			return err
		}
		resp := h.dispatch(msg)
		raw, err := json.Marshal(resp)
		if err != nil {
			log.Printf("worker: marshal response: %v", err)
			continue
		}
		if err := t.Send(raw); err != nil {
			if errors.Is(err, ErrTransportClosed) {
				return nil
			}
			return err
		}
	}
}

// dispatch decodes one inbound message. A malformed message produces an
// error response and leaves the id maps untouched.
func (h *Host) dispatch(msg []byte) Response {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		var probe struct {
			ID uint64 `json:"id"`
		}
		json.Unmarshal(msg, &probe)
		return errResponse(probe.ID, ErrKindUnknownCommand, "malformed message")
	}
	return h.handle(req)
}

func (h *Host) handle(req Request) Response {
	switch req.Type {
	case KindOpen:
		return h.open(req)
	case KindClose:
		return h.close(req)
	case KindCursor:
		return h.cursor(req)
	case KindScan:
		return h.scan(req)
	case KindFlush:
		return h.flush(req)
	case KindAppend:
		return h.append(req)
	case KindReadTextFile:
		return h.readTextFile(req)
	case KindWriteTextFile:
		return h.writeTextFile(req)
	case KindRemove:
		return Response{Type: KindRemove, ID: req.ID, OK: h.backend.Remove(req.Path)}
	}
	return errResponse(req.ID, ErrKindUnknownCommand, string(req.Type))
}

func (h *Host) open(req Request) Response {
	l, err := logfile.Open(h.backend, req.Path, req.Write, h.opts)
	if err != nil {
		return errResponse(req.ID, errKindOf(err), err.Error())
	}
	h.nextHandle++
	h.handles[h.nextHandle] = l
	return Response{Type: KindOpen, ID: req.ID, Handle: h.nextHandle}
}

func (h *Host) close(req Request) Response {
	l, ok := h.handles[req.Handle]
	if !ok {
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	// unregister before closing so a pending scan resolves to FileClosed
	// instead of touching freed state
	delete(h.handles, req.Handle)
	for id, hc := range h.cursors {
		if hc.handle == req.Handle {
			delete(h.cursors, id)
		}
	}
	if err := l.Close(); err != nil {
		return errResponse(req.ID, errKindOf(err), err.Error())
	}
	return Response{Type: KindClose, ID: req.ID, Handle: req.Handle, OK: true}
}

func (h *Host) cursor(req Request) Response {
	l, ok := h.handles[req.Handle]
	if !ok {
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	cur, err := l.StartCursor()
	if err != nil {
		return errResponse(req.ID, errKindOf(err), err.Error())
	}
	h.nextCursor++
	hc := &hostCursor{handle: req.Handle, cur: cur, next: make(chan scanResult, 1)}
	h.cursors[h.nextCursor] = hc
	h.startScan(hc)
	return Response{Type: KindCursor, ID: req.ID, Cursor: h.nextCursor}
}

// startScan eagerly computes the next batch off the request loop.
func (h *Host) startScan(hc *hostCursor) {
	go func() {
		records, done, err := hc.cur.Scan()
		hc.next <- scanResult{records: records, done: done, err: err}
	}()
}

func (h *Host) scan(req Request) Response {
	hc, ok := h.cursors[req.Cursor]
	if !ok {
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	res := <-hc.next
	if _, open := h.handles[hc.handle]; !open {
		// handle closed while the speculative scan was in flight
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	if res.err != nil {
		return errResponse(req.ID, errKindOf(res.err), res.err.Error())
	}
	if !res.done {
		h.startScan(hc)
	} else {
		hc.done = true
		hc.next <- scanResult{done: true}
	}
	raws := make([]json.RawMessage, 0, len(res.records))
	for _, rec := range res.records {
		raws = append(raws, rec.Raw)
	}
	return Response{Type: KindScan, ID: req.ID, Cursor: req.Cursor, Records: raws, Done: res.done}
}

func (h *Host) flush(req Request) Response {
	l, ok := h.handles[req.Handle]
	if !ok {
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	if err := l.Flush(); err != nil {
		return errResponse(req.ID, errKindOf(err), err.Error())
	}
	return Response{Type: KindFlush, ID: req.ID, Handle: req.Handle, OK: true}
}

func (h *Host) append(req Request) Response {
	l, ok := h.handles[req.Handle]
	if !ok {
		return errResponse(req.ID, ErrKindFileClosed, "")
	}
	records := make([]logfile.Record, 0, len(req.Records))
	for _, raw := range req.Records {
		rec, err := logfile.DecodeRecord(raw)
		if err != nil {
			return errResponse(req.ID, ErrKindIOError, err.Error())
		}
		records = append(records, rec)
	}
	if err := l.Append(records); err != nil {
		return errResponse(req.ID, errKindOf(err), err.Error())
	}
	return Response{Type: KindAppend, ID: req.ID, Handle: req.Handle, OK: true}
}

func (h *Host) readTextFile(req Request) Response {
	f, err := h.backend.Open(req.Path, false)
	if err != nil {
		// absent file is not an error for this convenience call
		return Response{Type: KindReadTextFile, ID: req.ID}
	}
	defer f.Close()
	var data []byte
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errResponse(req.ID, errKindOf(err), err.Error())
		}
	}
	text := string(data)
	return Response{Type: KindReadTextFile, ID: req.ID, Text: &text, OK: true}
}

func (h *Host) writeTextFile(req Request) Response {
	var text string
	if req.Text != nil {
		text = *req.Text
	}
	f, err := h.backend.Open(req.Path, true)
	if err != nil {
		return Response{Type: KindWriteTextFile, ID: req.ID, OK: false}
	}
	ok := f.Truncate(0) == nil && f.Write([]byte(text)) == nil && f.Flush() == nil
	if err := f.Close(); err != nil {
		ok = false
	}
	return Response{Type: KindWriteTextFile, ID: req.ID, OK: ok}
}
