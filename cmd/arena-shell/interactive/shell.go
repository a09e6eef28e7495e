// Package interactive provides the interactive command-line interface
// of arena-shell.
package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/callback"
	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/discovery"
	"github.com/zacpullen/arena-api/pkg/inspect"
	"github.com/zacpullen/arena-api/pkg/persistence"
	"github.com/zacpullen/arena-api/pkg/system"
)

// Options configure a Shell.
type Options struct {
	// Browser finds cameras advertised over mDNS for the discover
	// command. Nil disables discover.
	Browser *discovery.Enumerator

	// Advertiser publishes the cameras of the system for the advertise
	// command. Nil disables advertise.
	Advertiser *discovery.Advertiser

	// Store keeps the session and per-camera settings across runs. Nil
	// disables the session command and saving on Close.
	Store *persistence.Store
}

// Shell handles interactive mode for arena-shell.
type Shell struct {
	sys       *system.System
	opts      Options
	formatter *inspect.Formatter
	factory   *buffer.Factory
	rl        *readline.Instance
	out       io.Writer

	mu      sync.Mutex
	infos   []system.DeviceInfo
	current *device.Device
	watches map[string]callback.Handle
	session *persistence.SessionState
}

// New creates a shell over sys. Output goes to out until Run attaches a
// terminal.
func New(sys *system.System, out io.Writer, opts Options) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		sys:       sys,
		opts:      opts,
		formatter: inspect.NewFormatter(),
		factory:   buffer.NewFactory(),
		out:       out,
		watches:   make(map[string]callback.Handle),
	}
}

// Attach creates the readline instance. Use Stdout for log output
// afterwards to avoid interfering with the prompt.
func (s *Shell) Attach() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "arena> ",
		HistoryFile:     historyFile(),
		AutoComplete:    &completer{s: s},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()
	return nil
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + "/arena-shell.history"
}

// Stdout returns a writer that coordinates with the readline input.
func (s *Shell) Stdout() io.Writer { return s.out }

// Run starts the interactive command loop. Attach must be called first.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
		if s.Execute(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It reports whether the line asked to
// quit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "devices", "ls":
		s.cmdDevices(ctx)
	case "interfaces":
		s.cmdInterfaces(ctx)
	case "create", "open":
		s.cmdCreate(ctx, args)
	case "use":
		s.cmdUse(args)
	case "destroy", "close":
		s.cmdDestroy(args)
	case "forceip":
		s.cmdForceIP(ctx, args)
	case "timeout":
		s.cmdTimeout(args)
	case "discover":
		s.cmdDiscover(ctx)
	case "advertise":
		s.cmdAdvertise(ctx, args)
	case "session":
		s.cmdSession(args)

	case "inspect", "i":
		s.cmdInspect(args)
	case "tree", "t":
		s.cmdTree(args)
	case "read", "r":
		s.cmdRead(args)
	case "write", "w":
		s.cmdWrite(args)
	case "exec", "x":
		s.cmdExec(args)
	case "watch":
		s.cmdWatch(args)
	case "unwatch":
		s.cmdUnwatch(args)
	case "poll":
		s.cmdPoll()
	case "save":
		s.cmdSave(args)
	case "load":
		s.cmdLoad(args)

	case "stream":
		s.cmdStream(args)
	case "grab", "g":
		s.cmdGrab(args)
	case "events":
		s.cmdEvents(args)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Arena Shell Commands:
  Devices:
    devices                        - Enumerate devices on the network
    interfaces                     - List host interfaces
    create <mac|index>...          - Create devices (the last one becomes current)
    use <mac|index>                - Switch the current device
    destroy [mac|index|all]        - Destroy the current, one, or all devices
    forceip <mac> <ip> <mask> [gw] - Assign a temporary IP to a device
    timeout [ms]                   - Show or set the discovery timeout
    discover                       - Browse mDNS for advertised cameras
    advertise [stop]               - Publish the enumerated cameras over mDNS
    session [save|clear]           - Show or save the session, or forget it

  Nodes:
    inspect [path]                 - Show node details
    tree [map/]                    - Show the node tree of a map
    read <path>                    - Read a node value
    write <path> <value>           - Write a node value
    exec <path>                    - Execute a command node
    watch <path> | unwatch <path>  - Print a node whenever it changes
    poll                           - Advance polled nodes
    save <file> [node...]          - Save features to a file
    load <file>                    - Load features from a file

  Acquisition:
    stream start [buffers] | stop | stats
    grab [count] [timeout-ms] [-o file.pgm]
    events on | off | wait [timeout-ms]

  General:
    help                           - Show this help
    quit                           - Exit

  Path Format:
    [Map/]Node[Selector] - e.g. Width, TLStream/StreamBufferHandlingMode,
    TriggerMode[FrameStart]. Maps: Device, TLDevice, TLStream,
    TLInterface, TLSystem.`)
}

// Close saves the session when a store is set and releases the shell's
// watches and advertisements. Devices belong to the system.
func (s *Shell) Close() {
	if s.opts.Store != nil {
		if err := s.saveSession(); err != nil {
			s.printErr("Saving session failed", err)
		}
	}

	s.mu.Lock()
	d := s.current
	watches := s.watches
	s.watches = make(map[string]callback.Handle)
	s.mu.Unlock()

	if d != nil && !d.Destroyed() {
		for _, h := range watches {
			_ = d.DeregisterCallback(h)
		}
	}
	if s.opts.Advertiser != nil {
		s.opts.Advertiser.StopAll()
	}
	if s.opts.Browser != nil {
		s.opts.Browser.Stop()
	}
	if s.rl != nil {
		s.rl.Close()
	}
}

// device returns the current device, printing a hint when there is none.
func (s *Shell) device() *device.Device {
	s.mu.Lock()
	d := s.current
	s.mu.Unlock()
	if d == nil || d.Destroyed() {
		fmt.Fprintln(s.out, "No device (use 'create')")
		return nil
	}
	return d
}

// inspector covers the current device's maps and the TLSystem map.
func (s *Shell) inspector() *inspect.Inspector {
	s.mu.Lock()
	d := s.current
	s.mu.Unlock()
	if d == nil || d.Destroyed() {
		return inspect.NewInspector(s.sys.TLSystemNodeMap())
	}
	return inspect.ForDevice(d, s.sys.TLSystemNodeMap())
}

func (s *Shell) printErr(what string, err error) {
	fmt.Fprintf(s.out, "%s: %v\n", what, err)
}
