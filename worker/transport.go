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
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is a bidirectional stream of framed messages. The host body
// is identical across transports: in-process channels, a pipe to a child
// process, or a websocket across a network hop.
type Transport interface {
	Send(msg []byte) error
	// Receive blocks for the next message and returns ErrTransportClosed
	// once the peer is gone.
	Receive() ([]byte, error)
	Close() error
}

var ErrTransportClosed = errors.New("transport closed")

// channelTransport is the in-process variant; two of them share a pair of
// Go channels.
type channelTransport struct {
	out       chan<- []byte
	in        <-chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewChannelPair returns two connected in-process transports, one for
// each side.
func NewChannelPair() (Transport, Transport) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	done := make(chan struct{})
	a := &channelTransport{out: ab, in: ba, done: done}
	b := &channelTransport{out: ba, in: ab, done: done}
	return a, b
}

func (t *channelTransport) Send(msg []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	case t.out <- msg:
		return nil
	}
}

func (t *channelTransport) Receive() ([]byte, error) {
	select {
	case <-t.done:
		return nil, ErrTransportClosed
	case msg := <-t.in:
		return msg, nil
	}
}

func (t *channelTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// pipeTransport frames messages as newline-delimited JSON over a byte
// stream, e.g. the stdio of a child process.
type pipeTransport struct {
	r  *bufio.Reader
	w  io.Writer
	c  []io.Closer
	mu sync.Mutex
}

func NewPipeTransport(r io.Reader, w io.Writer) Transport {
	t := &pipeTransport{r: bufio.NewReaderSize(r, 64*1024), w: w}
	if c, ok := r.(io.Closer); ok {
		t.c = append(t.c, c)
	}
	if c, ok := w.(io.Closer); ok {
		t.c = append(t.c, c)
	}
	return t
}

func (t *pipeTransport) Send(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(msg); err != nil {
		return err
	}
	_, err := t.w.Write([]byte{'\n'})
	return err
}

func (t *pipeTransport) Receive() ([]byte, error) {
	line, err := t.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return line[:len(line)-1], nil
}

func (t *pipeTransport) Close() error {
	var first error
	for _, c := range t.c {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// wsTransport carries messages as websocket text frames.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWebSocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *wsTransport) Receive() ([]byte, error) {
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return msg, nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
