// Package commands implements the device commands shared by espsctl's
// one-shot mode and its interactive console.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/espixelstick/esps-go/internal/control"
	"github.com/espixelstick/esps-go/pkg/persistence"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// ErrUsage is returned for a malformed command line.
var ErrUsage = errors.New("usage")

// ErrUnknownCommand is returned for a command name Run does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Usage lists the device commands.
const Usage = `  status                       - Print device status
  admin                        - Print firmware and board info
  get <section>                - Print system, input_config or output_config
  set <section> <path> <value> - Change one value and save (path: network/ssid)
  backup [file]                - Write the configuration to a file
  restore <file>               - Merge a backup into the device configuration
  files                        - List files on the SD card
  delete <name>...             - Delete files
  reboot                       - Restart the device
  reset                        - Factory reset the device
  upload <firmware.bin>        - Flash new firmware`

// Run executes one command.
func Run(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command", ErrUsage)
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "status":
		t, err := ctl.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, t)
	case "admin":
		t, err := ctl.Admin(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, t)
	case "get":
		return Get(ctx, ctl, w, args)
	case "set":
		return Set(ctx, ctl, w, args)
	case "backup":
		return Backup(ctx, ctl, w, args)
	case "restore":
		return Restore(ctx, ctl, w, args)
	case "files", "ls":
		return Files(ctx, ctl, w)
	case "delete", "rm":
		if len(args) == 0 {
			return fmt.Errorf("%w: delete <name>...", ErrUsage)
		}
		if err := ctl.DeleteFiles(ctx, args...); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted %d file(s)\n", len(args))
		return nil
	case "reboot":
		if err := ctl.Reboot(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Device is restarting")
		return nil
	case "reset":
		if err := ctl.FactoryReset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "Factory reset sent, device is restarting")
		return nil
	case "upload":
		return Upload(ctx, ctl, w, args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

// ParseSection accepts a section name or its short form.
func ParseSection(name string) (wire.Section, error) {
	switch strings.ToLower(name) {
	case "system", "sys":
		return wire.SectionSystem, nil
	case "input", "input_config":
		return wire.SectionInput, nil
	case "output", "output_config":
		return wire.SectionOutput, nil
	default:
		return "", fmt.Errorf("%w: %q", wire.ErrUnknownSection, name)
	}
}

// ParseValue reads a command-line value as JSON when it parses as a JSON
// scalar and as a plain string otherwise.
func ParseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err == nil {
			return str
		}
	}
	return s
}

// Get prints a section, or one value of it.
func Get(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: get <section> [path]", ErrUsage)
	}
	sec, err := ParseSection(args[0])
	if err != nil {
		return err
	}
	t, err := ctl.Section(ctx, sec)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return printJSON(w, t)
	}
	v, ok := tree.Get(t, tree.ParsePath(args[1]))
	if !ok {
		return fmt.Errorf("%w: %s/%s", control.ErrBadValue, sec, args[1])
	}
	return printJSON(w, v)
}

// Set changes one value.
func Set(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: set <section> <path> <value>", ErrUsage)
	}
	sec, err := ParseSection(args[0])
	if err != nil {
		return err
	}
	if err := ctl.Set(ctx, sec, tree.ParsePath(args[1]), ParseValue(args[2])); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved %s\n", sec)
	return nil
}

// Backup writes the configuration to args[0], or to a file named after
// the device in the current directory.
func Backup(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	b, name, err := ctl.Backup(ctx)
	if err != nil {
		return err
	}
	path := name
	if len(args) > 0 {
		path = args[0]
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, name)
		}
	}
	if err := persistence.WriteBackup(path, b); err != nil {
		return err
	}
	fmt.Fprintf(w, "Backup written to %s\n", path)
	return nil
}

// Restore merges the backup file into the device configuration.
func Restore(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: restore <file>", ErrUsage)
	}
	b, err := persistence.ReadBackup(args[0])
	if err != nil {
		return err
	}
	result, err := ctl.Restore(ctx, b)
	if err != nil {
		return err
	}
	for _, sec := range wire.ConfigSections {
		if n, ok := result.Written[sec]; ok {
			fmt.Fprintf(w, "  %-14s %d value(s)\n", sec, n)
		}
	}
	for _, sec := range result.Skipped {
		fmt.Fprintf(w, "  %-14s skipped\n", sec)
	}
	fmt.Fprintln(w, "Restore complete")
	return nil
}

// Files lists the SD card.
func Files(ctx context.Context, ctl *control.Controller, w io.Writer) error {
	list, err := ctl.Files(ctx)
	if err != nil {
		return err
	}
	if !list.SDCardPresent {
		fmt.Fprintln(w, "No SD card")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tDATE")
	for _, f := range list.Files {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Length, f.ModTime().UTC().Format(time.DateTime))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d file(s), %d of %d bytes used\n", list.NumFiles, list.UsedBytes, list.TotalBytes)
	return nil
}

// Upload flashes a firmware image and prints progress in 10% steps.
func Upload(ctx context.Context, ctl *control.Controller, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upload <firmware.bin>", ErrUsage)
	}
	lastStep := int64(-1)
	err := ctl.Upload(ctx, args[0], func(sent, total int64) {
		if total <= 0 {
			return
		}
		if step := sent * 10 / total; step != lastStep {
			lastStep = step
			fmt.Fprintf(w, "  %3d%%\n", step*10)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Firmware uploaded, device is restarting")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
