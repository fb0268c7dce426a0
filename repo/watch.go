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
package repo

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/platform"
)

// hostBacked reports whether the backend maps paths onto the host
// filesystem, which is what fsnotify can observe.
func hostBacked(b backend.Backend) bool {
	switch b.(type) {
	case *backend.NativeBackend, *backend.RandomAccessBackend:
		return true
	}
	return false
}

// Peers write logs into the same directory tree (one process per log,
// many logs per repository), so the catalog can go stale. Watch hooks the
// host filesystem notifier and folds external creates and removes back
// into the catalog, forwarding them so a sync layer can react.

type EventOp int

const (
	LogCreated EventOp = iota
	LogRemoved
)

// Event reports an externally created or removed log.
type Event struct {
	Op    EventOp
	Entry Entry
}

var ErrWatchUnsupported = errors.New("watching requires a host-filesystem root")

type watchState struct {
	watcher *fsnotify.Watcher
	events  chan Event
	done    chan struct{}
}

func (w *watchState) stop() {
	close(w.done)
	w.watcher.Close()
}

// Watch starts delivering catalog events for externally written logs.
// Only meaningful when the repository root lives on the host filesystem.
func (r *Repository) Watch() (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRepositoryClosed
	}
	if r.watch != nil {
		return r.watch.events, nil
	}
	if !hostBacked(r.backend) {
		return nil, ErrWatchUnsupported
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.FromSlash(r.root)); err != nil {
		watcher.Close()
		return nil, err
	}
	w := &watchState{
		watcher: watcher,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
	r.watch = w
	go r.watchLoop(w)
	return w.events, nil
}

func (r *Repository) watchLoop(w *watchState) {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(filepath.FromSlash(r.root), ev.Name)
			if err != nil {
				continue
			}
			entry, isLog := classify(platform.Normalize(filepath.ToSlash(rel)))
			if !isLog || strings.HasPrefix(entry.Path, ".") {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create):
				r.mu.Lock()
				r.catalog.ReplaceOrInsert(entry)
				r.mu.Unlock()
				w.emit(Event{Op: LogCreated, Entry: entry})
			case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
				r.mu.Lock()
				r.catalog.Delete(entry)
				r.mu.Unlock()
				w.emit(Event{Op: LogRemoved, Entry: entry})
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// emit drops events when the consumer lags; the catalog itself stays
// consistent either way.
func (w *watchState) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}
