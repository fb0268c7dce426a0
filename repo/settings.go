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

import "fmt"
import "github.com/docker/go-units"
import "github.com/goatplatform/goatdb/logfile"
import "github.com/goatplatform/goatdb/platform"

type SettingsT struct {
	DataDir        string
	ReadBufferSize string // human readable, e.g. "1MiB"
	ScanBatchSize  int
	ArchiveCodec   string
}

var Settings SettingsT = SettingsT{"data", "1MiB", 100, "gz"}

// LoadSettings folds the recognized environment on top of the defaults.
func LoadSettings(cfg platform.Config) {
	if v := platform.Env(cfg, "GOATDB_DATA_DIR"); v != "" {
		Settings.DataDir = v
	}
	if v := platform.Env(cfg, "GOATDB_READ_BUFFER"); v != "" {
		Settings.ReadBufferSize = v
	}
	if v := platform.Env(cfg, "GOATDB_ARCHIVE_CODEC"); v != "" {
		Settings.ArchiveCodec = v
	}
}

// Options converts the settings into log handle options.
func (s SettingsT) Options() (logfile.Options, error) {
	size, err := units.RAMInBytes(s.ReadBufferSize)
	if err != nil {
		return logfile.Options{}, fmt.Errorf("read buffer size: %w", err)
	}
	return logfile.Options{
		ReadBufferSize: int(size),
		ScanBatchSize:  s.ScanBatchSize,
	}, nil
}
