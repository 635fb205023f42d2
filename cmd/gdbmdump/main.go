// gdbmdump writes every record in a GDBM database to stdout (or a file)
// in gdbmtool's binary or ASCII dump format.
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
		fmt.Fprintf(os.Stderr, "gdbmdump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("gdbmdump", pflag.ContinueOnError)

	ascii := fs.Bool("ascii", false, "write the human-diffable ASCII format instead of binary")
	output := fs.StringP("output", "o", "", "write to this path instead of stdout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gdbmdump [flags] <database-file>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("missing database file path")
	}

	db, err := gdbm.Open(fs.Arg(0), gdbm.OpenOptions{Flags: gdbm.Reader})
	if err != nil {
		return fmt.Errorf("opening %s: %w", fs.Arg(0), err)
	}
	defer db.Close()

	format := gdbm.FormatBinary
	if *ascii {
		format = gdbm.FormatASCII
	}

	if *output != "" {
		return db.DumpFile(*output, format)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	return db.Dump(w, format)
}
