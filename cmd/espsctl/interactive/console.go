// Package interactive provides the interactive console for espsctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/espixelstick/esps-go/cmd/espsctl/commands"
	"github.com/espixelstick/esps-go/internal/control"
	"github.com/espixelstick/esps-go/pkg/service"
)

// Console handles interactive mode for espsctl.
type Console struct {
	ctl     *control.Controller
	session *service.Session
	rl      *readline.Instance
	watch   bool
}

// New creates a console for ctl.
func New(ctl *control.Controller) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "esps> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := &Console{ctl: ctl, session: ctl.Session(), rl: rl}
	c.session.OnEvent(c.handleEvent)
	return c, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if c.Exec(ctx, strings.Fields(input)) {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one console command. It returns true when the console
// should exit.
func (c *Console) Exec(ctx context.Context, parts []string) bool {
	out := c.rl.Stdout()
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "quit", "exit", "q":
		return true
	case "view":
		c.cmdView(args)
	case "hide":
		c.report(c.session.SetHidden(true))
	case "show":
		c.report(c.session.SetHidden(false))
	case "diag":
		c.cmdDiag(args)
	case "watch":
		c.watch = !c.watch
		fmt.Fprintf(out, "Event display %s\n", onOff(c.watch))
	case "stats":
		c.cmdStats()
	default:
		err := commands.Run(ctx, c.ctl, out, parts)
		if errors.Is(err, commands.ErrUnknownCommand) {
			fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
			return false
		}
		c.report(err)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
ESPixelStick Console Commands:
  Device:
`+commands.Usage+`

  Session:
    view <name>        - Switch view: home, network, config, admin, diag, files
    hide / show        - Suspend or resume polling and the heartbeat
    diag on|off        - Start or stop the pixel stream
    watch              - Toggle display of session events
    stats              - Show queue and heartbeat statistics

  General:
    help               - Show this help
    quit               - Exit`)
}

func (c *Console) cmdView(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: view <home|network|config|admin|diag|files>")
		return
	}
	v, ok := service.ParseView(strings.ToLower(args[0]))
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Unknown view: %s\n", args[0])
		return
	}
	c.report(c.session.SetView(v))
}

func (c *Console) cmdDiag(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(c.rl.Stdout(), "Usage: diag on|off")
		return
	}
	c.report(c.session.SetDiagVisible(args[0] == "on"))
}

func (c *Console) cmdStats() {
	out := c.rl.Stdout()
	snap := c.session.Snapshot()
	fmt.Fprintf(out, "State:       %s\n", snap.State)
	fmt.Fprintf(out, "Connection:  %s\n", snap.ConnectionID)
	fmt.Fprintf(out, "View:        %s (hidden: %v, diag: %v)\n", snap.View, snap.Hidden, snap.DiagVisible)
	fmt.Fprintf(out, "Queue:       %d waiting, busy: %v, paused: %v\n", snap.Queued, snap.Busy, snap.Paused)
	fmt.Fprintf(out, "             %d sent, %d replies, %d timeouts, %d dropped\n",
		snap.Queue.Sent, snap.Queue.Replies, snap.Queue.Timeouts, snap.Queue.Dropped)
	fmt.Fprintf(out, "Heartbeat:   %s, last traffic %s\n", snap.Heartbeat.State, snap.Heartbeat.LastReceived.Format("15:04:05.000"))
	fmt.Fprintf(out, "Reconnects:  %d\n", snap.Reconnects)
}

func (c *Console) handleEvent(e service.Event) {
	if !c.watch {
		return
	}
	out := c.rl.Stdout()
	switch e.Type {
	case service.EventConnected:
		fmt.Fprintf(out, "[EVENT] Connected (%s)\n", e.ConnectionID)
	case service.EventDisconnected:
		fmt.Fprintf(out, "[EVENT] Disconnected: %s\n", e.Reason)
	case service.EventStateChanged:
		fmt.Fprintf(out, "[EVENT] State: %s\n", e.State)
	case service.EventSection:
		fmt.Fprintf(out, "[EVENT] Section received: %s\n", e.Section)
	case service.EventSaveComplete:
		fmt.Fprintf(out, "[EVENT] Save %v: %v\n", e.Sections, e.Success)
	case service.EventUnrecognized:
		fmt.Fprintf(out, "[EVENT] Unrecognized frame: %s\n", e.Reason)
	default:
		fmt.Fprintf(out, "[EVENT] %s\n", e.Type)
	}
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
