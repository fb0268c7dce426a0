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
	"os"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/logfile"
)

// Messages are UTF-8 JSON objects. A request carries a caller-chosen
// correlation id; the host replies with exactly one response echoing it.

type Kind string

const (
	KindOpen          Kind = "open"
	KindClose         Kind = "close"
	KindCursor        Kind = "cursor"
	KindScan          Kind = "scan"
	KindFlush         Kind = "flush"
	KindAppend        Kind = "append"
	KindReadTextFile  Kind = "readTextFile"
	KindWriteTextFile Kind = "writeTextFile"
	KindRemove        Kind = "remove"
	KindError         Kind = "error"
)

// ErrKind tags an error response.
type ErrKind string

const (
	ErrKindFileClosed        ErrKind = "FileClosed"
	ErrKindUnknownCommand    ErrKind = "UnknownCommand"
	ErrKindHandleLocked      ErrKind = "HandleLocked"
	ErrKindWriteNotPermitted ErrKind = "WriteNotPermitted"
	ErrKindIOError           ErrKind = "IOError"
)

type Request struct {
	Type    Kind              `json:"type"`
	ID      uint64            `json:"id"`
	Path    string            `json:"path,omitempty"`
	Write   bool              `json:"write,omitempty"`
	Handle  uint64            `json:"handle,omitempty"`
	Cursor  uint64            `json:"cursor,omitempty"`
	Records []json.RawMessage `json:"records,omitempty"`
	Text    *string           `json:"text,omitempty"`
}

type Response struct {
	Type    Kind              `json:"type"`
	ID      uint64            `json:"id"`
	Handle  uint64            `json:"handle,omitempty"`
	Cursor  uint64            `json:"cursor,omitempty"`
	Records []json.RawMessage `json:"records,omitempty"`
	Done    bool              `json:"done,omitempty"`
	Text    *string           `json:"text,omitempty"`
	OK      bool              `json:"ok,omitempty"`
	Err     ErrKind           `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}

// errKindOf maps engine errors onto the wire tags. Anything unrecognized
// is a plain IOError with the underlying message preserved.
func errKindOf(err error) ErrKind {
	switch {
	case errors.Is(err, logfile.ErrLogClosed), errors.Is(err, backend.ErrClosed), errors.Is(err, os.ErrNotExist):
		return ErrKindFileClosed
	case errors.Is(err, logfile.ErrWriteNotPermitted):
		return ErrKindWriteNotPermitted
	case errors.Is(err, backend.ErrHandleLocked):
		return ErrKindHandleLocked
	}
	return ErrKindIOError
}

func errResponse(id uint64, kind ErrKind, message string) Response {
	return Response{Type: KindError, ID: id, Err: kind, Message: message}
}

// Typed client-side errors mirroring the wire tags.
var (
	ErrFileClosed     = errors.New("file closed")
	ErrUnknownCommand = errors.New("unknown command")
	ErrRemote         = errors.New("worker error")
)

// errOf turns an error response back into a Go error on the client side.
func errOf(resp Response) error {
	if resp.Type != KindError {
		return nil
	}
	switch resp.Err {
	case ErrKindFileClosed:
		return ErrFileClosed
	case ErrKindUnknownCommand:
		return ErrUnknownCommand
	case ErrKindWriteNotPermitted:
		return logfile.ErrWriteNotPermitted
	case ErrKindHandleLocked:
		return backend.ErrHandleLocked
	}
	if resp.Message != "" {
		return errors.New(resp.Message)
	}
	return ErrRemote
}
