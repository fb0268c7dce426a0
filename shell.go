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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/goatplatform/goatdb/repo"
	"github.com/goatplatform/goatdb/worker"
)

const newprompt = "\033[32m>\033[0m "
const resultprompt = "\033[31m=\033[0m "

// Repl drives the inspection shell against a running worker host.
func Repl(client *worker.Client, repository *repo.Repository) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".goatdb-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		// anti-panic func
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			runCommand(client, repository, line)
		}()
	}
}

func runCommand(client *worker.Client, repository *repo.Repository, line string) {
	args := strings.Fields(line)
	cmd, args := args[0], args[1:]
	switch cmd {
	case "help":
		fmt.Print(`commands:
  ls [prefix]               list catalog entries
  open <path> [ro]          open a log, print its handle id
  close <handle>            close a handle
  cursor <handle>           start a scan cursor
  scan <cursor>             fetch the next batch
  append <handle> <json>... append records
  flush <handle>            flush to disk
  archive <path> [codec]    seal a cold log
  read <path>               print a text file
  write <path> <text>       replace a text file
  rm <path>                 remove a file
  exit
`)
	case "ls":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		for _, e := range repository.List(prefix) {
			if e.Codec != "" {
				fmt.Printf("%s%s  [%s]\n", resultprompt, e.Path, e.Codec)
			} else {
				fmt.Printf("%s%s\n", resultprompt, e.Path)
			}
		}
	case "open":
		if len(args) == 0 {
			fmt.Println("usage: open <path> [ro]")
			return
		}
		write := len(args) < 2 || args[1] != "ro"
		handle, err := client.Open(args[0], write)
		report(handle, err)
	case "close":
		report(0, client.CloseHandle(number(args)))
	case "cursor":
		cursor, err := client.Cursor(number(args))
		report(cursor, err)
	case "scan":
		records, done, err := client.Scan(number(args))
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, rec := range records {
			fmt.Printf("%s%s\n", resultprompt, string(rec))
		}
		if done {
			fmt.Println(resultprompt + "done")
		}
	case "append":
		if len(args) < 2 {
			fmt.Println("usage: append <handle> <json>...")
			return
		}
		handle, _ := strconv.ParseUint(args[0], 10, 64)
		records := make([]json.RawMessage, 0, len(args)-1)
		for _, arg := range args[1:] {
			records = append(records, json.RawMessage(arg))
		}
		report(0, client.Append(handle, records))
	case "flush":
		report(0, client.Flush(number(args)))
	case "archive":
		if len(args) == 0 {
			fmt.Println("usage: archive <path> [codec]")
			return
		}
		codec := repo.Settings.ArchiveCodec
		if len(args) > 1 {
			codec = args[1]
		}
		report(0, repository.Archive(args[0], codec))
	case "read":
		if len(args) == 0 {
			fmt.Println("usage: read <path>")
			return
		}
		text, ok, err := client.ReadTextFile(args[0])
		if err != nil {
			fmt.Println("error:", err)
		} else if !ok {
			fmt.Println(resultprompt + "(absent)")
		} else {
			fmt.Println(resultprompt + text)
		}
	case "write":
		if len(args) < 2 {
			fmt.Println("usage: write <path> <text>")
			return
		}
		ok, err := client.WriteTextFile(args[0], strings.Join(args[1:], " "))
		report(0, err)
		if err == nil && !ok {
			fmt.Println(resultprompt + "not written")
		}
	case "rm":
		if len(args) == 0 {
			fmt.Println("usage: rm <path>")
			return
		}
		ok, err := client.Remove(args[0])
		if err != nil {
			fmt.Println("error:", err)
		} else {
			fmt.Printf("%s%v\n", resultprompt, ok)
		}
	default:
		fmt.Println("unknown command, try help")
	}
}

func number(args []string) uint64 {
	if len(args) == 0 {
		return 0
	}
	n, _ := strconv.ParseUint(args[0], 10, 64)
	return n
}

func report(id uint64, err error) {
	if err != nil {
		fmt.Println("error:", err)
	} else if id != 0 {
		fmt.Printf("%s%d\n", resultprompt, id)
	} else {
		fmt.Println(resultprompt + "ok")
	}
}
