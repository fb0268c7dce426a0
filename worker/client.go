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
	"sync"

	"github.com/google/uuid"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/logfile"
)

// Client hides the correlation-id bookkeeping of the worker protocol
// behind plain calls. Safe for concurrent use; responses are matched to
// their callers by id.
type Client struct {
	transport Transport
	name      uuid.UUID

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Response
	closed  bool
}

func NewClient(t Transport) *Client {
	c := &Client{
		transport: t,
		name:      uuid.New(),
		pending:   map[uint64]chan Response{},
	}
	go c.readLoop()
	return c
}

// Spawn starts an in-process worker host over a channel pair and returns
// a client talking to it. The thin-caller path for single-process use.
func Spawn(b backend.Backend, opts logfile.Options) *Client {
	local, remote := NewChannelPair()
	host := NewHost(b, opts)
	go host.Serve(remote)
	return NewClient(local)
}

// Name identifies this client, e.g. in transport-level diagnostics.
func (c *Client) Name() string {
	return c.name.String()
}

func (c *Client) readLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			c.failAll()
			return
		}
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// failAll resolves every pending call once the transport is gone.
func (c *Client) failAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = map[uint64]chan Response{}
	c.closed = true
	c.mu.Unlock()
	for id, ch := range pending {
		ch <- errResponse(id, ErrKindIOError, "transport closed")
	}
}

// Call issues one request and waits for its response.
func (c *Client) Call(req Request) (Response, error) {
	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, ErrTransportClosed
	}
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	raw, err := json.Marshal(req)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Response{}, err
	}
	if err := c.transport.Send(raw); err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Response{}, err
	}
	resp := <-ch
	return resp, errOf(resp)
}

func (c *Client) Open(path string, write bool) (uint64, error) {
	resp, err := c.Call(Request{Type: KindOpen, Path: path, Write: write})
	if err != nil {
		return 0, err
	}
	return resp.Handle, nil
}

func (c *Client) CloseHandle(handle uint64) error {
	_, err := c.Call(Request{Type: KindClose, Handle: handle})
	return err
}

func (c *Client) Cursor(handle uint64) (uint64, error) {
	resp, err := c.Call(Request{Type: KindCursor, Handle: handle})
	if err != nil {
		return 0, err
	}
	return resp.Cursor, nil
}

func (c *Client) Scan(cursor uint64) ([]json.RawMessage, bool, error) {
	resp, err := c.Call(Request{Type: KindScan, Cursor: cursor})
	if err != nil {
		return nil, false, err
	}
	return resp.Records, resp.Done, nil
}

// ScanAll drains a cursor into memory. Convenience for replay at startup.
func (c *Client) ScanAll(cursor uint64) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for {
		records, done, err := c.Scan(cursor)
		if err != nil {
			return all, err
		}
		all = append(all, records...)
		if done {
			return all, nil
		}
	}
}

func (c *Client) Append(handle uint64, records []json.RawMessage) error {
	_, err := c.Call(Request{Type: KindAppend, Handle: handle, Records: records})
	return err
}

func (c *Client) Flush(handle uint64) error {
	_, err := c.Call(Request{Type: KindFlush, Handle: handle})
	return err
}

// ReadTextFile returns the file contents, or ok = false when absent.
func (c *Client) ReadTextFile(path string) (text string, ok bool, err error) {
	resp, err := c.Call(Request{Type: KindReadTextFile, Path: path})
	if err != nil {
		return "", false, err
	}
	if resp.Text == nil {
		return "", false, nil
	}
	return *resp.Text, true, nil
}

func (c *Client) WriteTextFile(path string, text string) (bool, error) {
	resp, err := c.Call(Request{Type: KindWriteTextFile, Path: path, Text: &text})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (c *Client) Remove(path string) (bool, error) {
	resp, err := c.Call(Request{Type: KindRemove, Path: path})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Close tears down the transport. Pending calls resolve with an error.
func (c *Client) Close() error {
	return c.transport.Close()
}
