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
package platform

import (
	"net/url"
	"path"
	"strings"
)

// All storage paths are POSIX style with "/". Normalize funnels whatever
// the host hands us (backslashes, dot segments, file:// URLs) into that
// shape once, at the boundary.

// Normalize converts backslashes to slashes, collapses "." and ".."
// segments and strips a trailing slash. Absolute stays absolute,
// relative stays relative.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return "."
	}
	// path.Clean keeps a windows drive prefix intact as a plain segment
	return path.Clean(p)
}

// FromFileURL converts a file:// URL into a normalized path. Anything
// that is not a file URL is normalized as a plain path.
func FromFileURL(raw string) string {
	if !strings.HasPrefix(raw, "file://") {
		return Normalize(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Normalize(strings.TrimPrefix(raw, "file://"))
	}
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = "/" + u.Host + p
	}
	// windows file URLs carry the drive behind a leading slash
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return Normalize(p)
}

// Join joins and normalizes path segments.
func Join(parts ...string) string {
	return Normalize(path.Join(parts...))
}

func Dir(p string) string {
	return path.Dir(Normalize(p))
}

func Base(p string) string {
	return path.Base(Normalize(p))
}

func IsAbs(p string) bool {
	return strings.HasPrefix(Normalize(p), "/")
}
