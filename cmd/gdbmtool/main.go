// gdbmtool is an interactive shell for inspecting and editing a GDBM
// database file.
//
// Usage:
//
//	gdbmtool [flags] <database-file>
//
// Flags:
//
//	-r, --reader        Open read-only
//	-n, --newdb         Create a fresh, empty database
//	    --block-size    Block size for a newly created database
//	    --cache-size    Number of buckets the bucket cache holds
//	    --metrics-addr  Serve Prometheus metrics on this address
//
// Commands (in REPL):
//
//	store <key> <value>   Insert or replace a key
//	fetch <key>            Print a key's value
//	delete <key>           Remove a key
//	exists <key>           Report whether a key is present
//	first / next <key>     Walk the key space
//	count                  Count stored keys
//	sync                   Flush buffered writes to disk
//	reorganize             Compact the database file
//	dump <path> [ascii]    Write every record to path
//	load <path>            Read records from path, replacing matches
//	help                   Show this help
//	exit / quit / q        Exit
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/sailfishos-mirror/gdbm"
	"github.com/sailfishos-mirror/gdbm/internal/logx"
	"github.com/sailfishos-mirror/gdbm/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gdbmtool: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("gdbmtool", pflag.ContinueOnError)

	reader := fs.BoolP("reader", "r", false, "open read-only")
	newdb := fs.BoolP("newdb", "n", false, "create a fresh, empty database")
	blockSize := fs.Int("block-size", 0, "block size for a newly created database")
	cacheSize := fs.Int("cache-size", 0, "number of buckets the bucket cache holds")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9327)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gdbmtool [flags] <database-file>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("missing database file path")
	}

	path := fs.Arg(0)

	flags := gdbm.Writer
	switch {
	case *reader:
		flags = gdbm.Reader
	case *newdb:
		flags = gdbm.NewDB
	default:
		if _, err := os.Stat(path); os.IsNotExist(err) {
			flags = gdbm.WRCreat
		}
	}

	sink := metrics.Sink(metrics.Noop)

	if *metricsAddr != "" {
		prom, promErr := metrics.NewProm(prometheus.DefaultRegisterer, "gdbmtool")
		if promErr != nil {
			return fmt.Errorf("registering metrics: %w", promErr)
		}

		sink = prom

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		go func() {
			_ = http.ListenAndServe(*metricsAddr, mux)
		}()
	}

	db, err := gdbm.Open(path, gdbm.OpenOptions{
		Flags:     flags,
		BlockSize: *blockSize,
		CacheSize: *cacheSize,
		Metrics:   sink,
		Logger:    logx.Glog{},
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	repl := &repl{db: db, path: path, readOnly: *reader}

	return repl.run()
}

type repl struct {
	db       *gdbm.DB
	path     string
	readOnly bool
	liner    *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".gdbmtool_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("gdbmtool - %s (read-only=%v)\n", r.path, r.readOnly)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("gdbm> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "store", "put":
			r.cmdStore(args)
		case "fetch", "get":
			r.cmdFetch(args)
		case "delete", "del":
			r.cmdDelete(args)
		case "exists":
			r.cmdExists(args)
		case "first":
			r.cmdFirst()
		case "next":
			r.cmdNext(args)
		case "count":
			r.cmdCount()
		case "sync":
			r.cmdSync()
		case "reorganize", "reorg":
			r.cmdReorganize()
		case "dump":
			r.cmdDump(args)
		case "load":
			r.cmdLoad(args)
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"store", "put", "fetch", "get", "delete", "del", "exists",
		"first", "next", "count", "sync", "reorganize", "reorg",
		"dump", "load", "help", "exit", "quit", "q",
	}

	var out []string

	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}

	return out
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  store <key> <value>   Insert or replace a key")
	fmt.Println("  fetch <key>           Print a key's value")
	fmt.Println("  delete <key>          Remove a key")
	fmt.Println("  exists <key>          Report whether a key is present")
	fmt.Println("  first / next <key>    Walk the key space")
	fmt.Println("  count                 Count stored keys")
	fmt.Println("  sync                  Flush buffered writes to disk")
	fmt.Println("  reorganize            Compact the database file")
	fmt.Println("  dump <path> [ascii]   Write every record to path")
	fmt.Println("  load <path>           Read records from path, replacing matches")
	fmt.Println("  help                  Show this help")
	fmt.Println("  exit / quit / q       Exit")
}

func parseBytes(s string) []byte {
	if raw, err := hex.DecodeString(s); err == nil && len(s)%2 == 0 && len(s) > 0 {
		return raw
	}

	return []byte(s)
}

func formatBytes(b []byte) string {
	for _, c := range b {
		if c < 32 || c > 126 {
			return hex.EncodeToString(b)
		}
	}

	return string(b)
}

func (r *repl) cmdStore(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: store <key> <value>")
		return
	}

	if err := r.db.Store(parseBytes(args[0]), parseBytes(strings.Join(args[1:], " ")), gdbm.Replace); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *repl) cmdFetch(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fetch <key>")
		return
	}

	data, err := r.db.Fetch(parseBytes(args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(formatBytes(data))
}

func (r *repl) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: delete <key>")
		return
	}

	if err := r.db.Delete(parseBytes(args[0])); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *repl) cmdExists(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: exists <key>")
		return
	}

	ok, err := r.db.Exists(parseBytes(args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(ok)
}

func (r *repl) cmdFirst() {
	key, err := r.db.FirstKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(formatBytes(key))
}

func (r *repl) cmdNext(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: next <key>")
		return
	}

	key, err := r.db.NextKey(parseBytes(args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(formatBytes(key))
}

func (r *repl) cmdCount() {
	n, err := r.db.Count()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(n)
}

func (r *repl) cmdSync() {
	if err := r.db.Sync(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *repl) cmdReorganize() {
	if err := r.db.Reorganize(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *repl) cmdDump(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: dump <path> [ascii]")
		return
	}

	format := gdbm.FormatBinary
	if len(args) >= 2 && strings.EqualFold(args[1], "ascii") {
		format = gdbm.FormatASCII
	}

	if err := r.db.DumpFile(args[0], format); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *repl) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: load <path>")
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer f.Close()

	if err := r.db.Load(bufio.NewReader(f)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}
