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

import "os"
import "strings"

// Recognized environment keys.
const (
	EnvSuite     = "GOATDB_SUITE"
	EnvTest      = "GOATDB_TEST"
	EnvBenchmark = "GOATDB_BENCHMARK"
)

// Config is an injected environment for runtimes without process env
// (the browser injects a GoatDBConfig global). Keys are the GOATDB_
// names with the prefix stripped and lowercased.
type Config map[string]string

// Env resolves name against the injected config when one is given; a key
// missing from it yields "" without consulting process env. A nil config
// reads process env only.
func Env(cfg Config, name string) string {
	if cfg != nil {
		key := strings.ToLower(strings.TrimPrefix(name, "GOATDB_"))
		if v, ok := cfg[key]; ok {
			return v
		}
		return ""
	}
	return os.Getenv(name)
}

func envAny(cfg Config, names ...string) string {
	for _, name := range names {
		if v := Env(cfg, name); v != "" {
			return v
		}
	}
	return ""
}

// Suite returns the configured test-suite name, if any.
func Suite(cfg Config) string {
	return Env(cfg, EnvSuite)
}

func IsTest(cfg Config) bool {
	return Env(cfg, EnvTest) != ""
}

func IsBenchmark(cfg Config) bool {
	return Env(cfg, EnvBenchmark) != ""
}

// IsCI reports whether the process runs under a CI system.
func IsCI(cfg Config) bool {
	return envAny(cfg, "CI", "GITHUB_ACTIONS") != ""
}

// Username resolves the login name the way coreutils do.
func Username(cfg Config) string {
	return envAny(cfg, "USER", "LOGNAME", "USERNAME")
}

// TempDir resolves the temp directory from env, falling back to the OS
// default.
func TempDir(cfg Config) string {
	if v := envAny(cfg, "TMPDIR", "TMP", "TEMP"); v != "" {
		return Normalize(v)
	}
	return Normalize(os.TempDir())
}
