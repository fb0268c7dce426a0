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
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/logfile"
	"github.com/goatplatform/goatdb/platform"
)

// LogExt is the extension of live log files under a repository root.
const LogExt = ".jsonlog"

var (
	ErrRepositoryClosed = errors.New("repository closed")
	ErrLogOpen          = errors.New("log is open")
	ErrUnknownLog       = errors.New("unknown log")
)

// Entry is one log known to the catalog. Path is root-relative with
// slashes; Codec is empty for a live log and the compression codec for a
// sealed archive.
type Entry struct {
	Path  string
	Codec string
}

func entryLess(a, b Entry) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Codec < b.Codec
}

// Repository tracks every log under a root directory in an ordered
// catalog, hands out handles, and seals cold logs into archives.
type Repository struct {
	backend backend.Backend
	root    string
	opts    logfile.Options

	mu      sync.Mutex
	catalog *btree.BTreeG[Entry]
	open    map[string]*logfile.Log
	watch   *watchState
	closed  bool
}

// Open loads the catalog below root, creating the directory when absent.
func Open(b backend.Backend, root string, opts logfile.Options) (*Repository, error) {
	root = platform.Normalize(root)
	b.Mkdir(root)
	r := &Repository{
		backend: b,
		root:    root,
		opts:    opts,
		catalog: btree.NewG(8, entryLess),
		open:    map[string]*logfile.Log{},
	}
	if err := r.walk(""); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) walk(rel string) error {
	entries, err := r.backend.ReadDir(platform.Join(r.root, rel))
	if err != nil {
		return err
	}
	for _, e := range entries {
		sub := e.Name
		if rel != "" {
			sub = rel + "/" + e.Name
		}
		if e.IsDirectory {
			if err := r.walk(sub); err != nil {
				return err
			}
			continue
		}
		if entry, ok := classify(sub); ok {
			r.catalog.ReplaceOrInsert(entry)
		}
	}
	return nil
}

// classify maps a root-relative file name onto a catalog entry.
func classify(rel string) (Entry, bool) {
	if strings.HasSuffix(rel, LogExt) {
		return Entry{Path: rel}, true
	}
	for _, codec := range []string{"gz", "xz", "lz4"} {
		if strings.HasSuffix(rel, LogExt+"."+codec) {
			return Entry{Path: strings.TrimSuffix(rel, "."+codec), Codec: codec}, true
		}
	}
	return Entry{}, false
}

// List returns the catalog entries with the given path prefix in
// ascending path order. An empty prefix lists everything.
func (r *Repository) List(prefix string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Entry
	r.catalog.AscendGreaterOrEqual(Entry{Path: prefix}, func(e Entry) bool {
		if !strings.HasPrefix(e.Path, prefix) {
			return false
		}
		result = append(result, e)
		return true
	})
	return result
}

// OpenLog opens the live log at the root-relative path rel. A writable
// open registers the handle so the same log cannot be archived from
// under it.
func (r *Repository) OpenLog(rel string, write bool) (*logfile.Log, error) {
	rel = platform.Normalize(rel)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRepositoryClosed
	}
	l, err := logfile.Open(r.backend, platform.Join(r.root, rel), write, r.opts)
	if err != nil {
		return nil, err
	}
	if write {
		r.open[rel] = l
		r.catalog.ReplaceOrInsert(Entry{Path: rel})
	}
	return l, nil
}

// CloseLog drops the writable registration and closes the handle.
func (r *Repository) CloseLog(rel string) error {
	rel = platform.Normalize(rel)
	r.mu.Lock()
	l, ok := r.open[rel]
	delete(r.open, rel)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownLog
	}
	return l.Close()
}

// Archive seals the live log at rel into a compressed archive and drops
// the original file. The log must not be open for writing.
func (r *Repository) Archive(rel string, codec string) error {
	rel = platform.Normalize(rel)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRepositoryClosed
	}
	if _, ok := r.open[rel]; ok {
		return ErrLogOpen
	}
	if _, ok := r.catalog.Get(Entry{Path: rel}); !ok {
		return ErrUnknownLog
	}
	if err := logfile.Archive(r.backend, platform.Join(r.root, rel), codec, uuid.NewString()); err != nil {
		return err
	}
	r.catalog.Delete(Entry{Path: rel})
	r.catalog.ReplaceOrInsert(Entry{Path: rel, Codec: codec})
	return nil
}

// Replay streams the records of a sealed archive in order.
func (r *Repository) Replay(e Entry, apply func(logfile.Record) error) error {
	if e.Codec == "" {
		return ErrUnknownLog
	}
	return logfile.ReplayArchive(r.backend, platform.Join(r.root, e.Path)+"."+e.Codec, e.Codec, apply)
}

// Close stops the watcher and closes every registered handle.
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	open := r.open
	r.open = map[string]*logfile.Log{}
	w := r.watch
	r.watch = nil
	r.mu.Unlock()

	if w != nil {
		w.stop()
	}
	var first error
	for _, l := range open {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
