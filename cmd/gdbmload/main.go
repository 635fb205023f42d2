// gdbmload reads records written by gdbmdump and stores each one into a
// GDBM database, creating the database if requested.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/sailfishos-mirror/gdbm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gdbmload: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("gdbmload", pflag.ContinueOnError)

	create := fs.BoolP("create", "c", false, "create the database if it does not already exist")
	input := fs.StringP("input", "i", "", "read from this path instead of stdin")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gdbmload [flags] <database-file>\n\nFlags:\n")
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
	if *create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			flags = gdbm.WRCreat
		}
	}

	db, err := gdbm.Open(path, gdbm.OpenOptions{Flags: flags})
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	r := os.Stdin

	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("opening %s: %w", *input, err)
		}
		defer f.Close()

		r = f
	}

	if err := db.Load(bufio.NewReader(r)); err != nil {
		return fmt.Errorf("loading: %w", err)
	}

	return db.Sync()
}
