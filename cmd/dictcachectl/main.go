/*
Copyright (C) 2026  MemCP Contributors

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
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/dictcache/core"
)

const newprompt = "\033[32mdictcache>\033[0m "
const resultprompt = "\033[31m=\033[0m "

// main starts a standalone admin REPL against a freshly loaded Context,
// for operators who want to poke at dictionaries without embedding the
// library in a host process.
func main() {
	dictDir := flag.String("dict-dir", "data/dict", "dictionary manifest directory")
	verbose := flag.Bool("verbose", false, "verbose logging")
	flag.Parse()

	cfg := core.DefaultConfig()
	cfg.DictDir = *dictDir
	cfg.Verbose = *verbose

	ctx, err := core.NewContext(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dictcachectl:", err)
		os.Exit(1)
	}
	defer ctx.Stop()

	repl(ctx)
}

// repl is the command loop, adapted from scm/prompt.go's Repl: same
// readline config, history file, and anti-panic recover-per-line wrapper,
// generalized from evaluating Scheme expressions to dispatching a small
// fixed admin command set.
func repl(ctx *core.Context) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".dictcachectl-history.tmp",
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
		if line == "quit" || line == "exit" {
			break
		}
		runCommand(ctx, line)
	}
}

func runCommand(ctx *core.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Println("panic:", r, string(debug.Stack()))
		}
	}()

	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		printHelp()
	case "namespaces":
		for _, ns := range ctx.ListNamespaces() {
			fmt.Println(ns)
		}
	case "stats":
		printJSON(ctx.SnapshotStats())
	case "dict-exists":
		if len(args) != 1 {
			fmt.Println("usage: dict-exists <id>")
			return
		}
		id, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			fmt.Println("bad id:", err)
			return
		}
		fmt.Println(ctx.DictExists(uint16(id)))
	case "sample":
		if len(args) != 3 {
			fmt.Println("usage: sample <namespace> <key> <value>")
			return
		}
		ctx.Sample(args[0], []byte(args[1]), []byte(args[2]))
		fmt.Println(resultprompt, "sampled")
	case "reload":
		if err := ctx.ReloadDictionaries(); err != nil {
			fmt.Println("reload failed:", err)
			return
		}
		fmt.Println(resultprompt, "reloaded")
	case "encode":
		if len(args) != 2 {
			fmt.Println("usage: encode <key> <value>")
			return
		}
		frame := ctx.MaybeEncode([]byte(args[0]), []byte(args[1]))
		fmt.Printf("%x\n", frame)
	default:
		fmt.Println("unknown command:", cmd, "(try 'help')")
	}
}

func printHelp() {
	fmt.Println(`commands:
  namespaces              list every namespace the current table serves
  stats                   dump every namespace's counters as JSON
  dict-exists <id>        report whether dictionary id is live
  sample <ns> <key> <val> manually offer a key/value pair to training
  reload                  reload the dictionary manifest from disk
  encode <key> <value>    run maybe_encode and print the resulting frame (hex)
  quit                    leave`)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
