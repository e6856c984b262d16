// Command esps-log inspects protocol capture files written by espsctl and
// esps-sim with the -protocol-log flag.
//
// Usage:
//
//	esps-log <command> [flags] <file.elog>
//
// Commands:
//
//	view     Print events in human-readable form
//	export   Write events as jsonl or csv
//	filter   Copy matching events to a new capture file
//	stats    Summarise traffic, latency and connections
//
// Examples:
//
//	esps-log view -kind status porch.elog
//	esps-log export -format csv -o porch.csv porch.elog
//	esps-log filter -conn-id 3f2a91c4 -o one.elog porch.elog
//	esps-log stats porch.elog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/espixelstick/esps-go/cmd/esps-log/commands"
	"github.com/espixelstick/esps-go/pkg/log"
)

const usage = `esps-log - ESPixelStick protocol capture viewer

Usage:
  esps-log <command> [flags] <file.elog>

Commands:
  view     Print events in human-readable form
  export   Write events as jsonl or csv
  filter   Copy matching events to a new capture file
  stats    Summarise traffic, latency and connections

Use "esps-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared filter flags.
func newFlagSet(name, summary string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "esps-log %s - %s\n\nUsage:\n  esps-log %s [flags] <file.elog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.DeviceName, "device", "", "Filter by device name")
	fs.StringVar(&opts.Kind, "kind", "", "Filter by message kind (status, config, ack, ...)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter events from this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter events before this time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
	return fs, opts
}

// parse parses args and returns the capture path and filter.
func parse(fs *flag.FlagSet, opts *commands.FilterOptions, args []string) (string, log.Filter, error) {
	if err := fs.Parse(args); err != nil {
		return "", log.Filter{}, err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", log.Filter{}, fmt.Errorf("log file path required")
	}
	filter, err := opts.Build()
	return fs.Arg(0), filter, err
}

func runView(args []string) error {
	fs, opts := newFlagSet("view", "Print events in human-readable form")
	path, filter, err := parse(fs, opts, args)
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs, opts := newFlagSet("export", "Write events as jsonl or csv")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, filter, err := parse(fs, opts, args)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, filter, w)
}

func runFilter(args []string) error {
	fs, opts := newFlagSet("filter", "Copy matching events to a new capture file")
	output := fs.String("o", "", "Output file (required)")
	path, filter, err := parse(fs, opts, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file required (-o)")
	}
	return commands.RunFilter(path, *output, filter, os.Stdout)
}

func runStats(args []string) error {
	fs, opts := newFlagSet("stats", "Summarise traffic, latency and connections")
	path, filter, err := parse(fs, opts, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, filter, os.Stdout)
}
