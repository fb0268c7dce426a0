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
/*
	goatdb storage shell — append-only JSON commit logs for every peer
*/
package main

import "flag"
import "fmt"
import "os"
import "github.com/dc0d/onexit"
import "github.com/joho/godotenv"
import "github.com/goatplatform/goatdb/backend"
import "github.com/goatplatform/goatdb/repo"
import "github.com/goatplatform/goatdb/scheduler"
import "github.com/goatplatform/goatdb/worker"

func main() {
	fmt.Print(`GoatDB storage shell
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)
	// .env, then process env, then flags, most specific wins
	godotenv.Load()
	repo.LoadSettings(nil)
	flag.StringVar(&repo.Settings.DataDir, "data", repo.Settings.DataDir, "repository root directory")
	flag.StringVar(&repo.Settings.ReadBufferSize, "read-buffer", repo.Settings.ReadBufferSize, "cursor read buffer size (e.g. 1MiB)")
	flag.IntVar(&repo.Settings.ScanBatchSize, "scan-batch", repo.Settings.ScanBatchSize, "records per scan batch")
	flag.StringVar(&repo.Settings.ArchiveCodec, "codec", repo.Settings.ArchiveCodec, "archive codec: gz, xz or lz4")
	flag.Parse()

	opts, err := repo.Settings.Options()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	b := backend.NewNative()
	repository, err := repo.Open(b, repo.Settings.DataDir, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sched := scheduler.New(scheduler.Options{})
	client := worker.Spawn(b, opts)

	onexit.Register(func() {
		client.Close()
		sched.Stop()
		repository.Close()
	})

	Repl(client, repository)
}
