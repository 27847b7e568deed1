package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/cbegin/oplstream-go/internal/control"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfg control.Config
	cfg.RegisterFlags(flag.CommandLine, "ebiten")
	flag.Parse()
	files := cfg.Files(flag.Args())

	if cfg.RenderDir != "" {
		return control.RenderAll(files, cfg.RenderDir, cfg.SampleRate, func(s string) { fmt.Println(s) })
	}

	logger, closer, err := cfg.Logger(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return control.ExitFileError
	}
	defer closer.Close()
	newSession, err := cfg.SessionFactory(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return control.ExitPlayback
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	con := newConsole()
	con.Start()
	defer con.Stop()

	r := &control.Runner{
		Files:      files,
		Repeat:     !cfg.NoRepeat,
		NewSession: newSession,
		Frontend:   con,
		Logger:     logger,
	}
	return r.Run(ctx)
}

// console is a control.Frontend on a raw-mode terminal. Terminals report key
// presses only, so each press is shown to the runner as down for one poll
// and up on the next.
type console struct {
	esc  atomic.Bool
	next atomic.Bool

	mu      sync.Mutex
	raw     bool
	lastLen int
	host    *terminalHost
}

func newConsole() *console {
	c := &console{}
	c.host = newTerminalHost(c.keys)
	return c
}

func (c *console) Start() {
	c.raw = c.host.Start()
}

func (c *console) Stop() { c.host.Stop() }

func (c *console) keys(b []byte) {
	esc, next := scanKeys(b)
	if esc {
		c.esc.Store(true)
	}
	if next {
		c.next.Store(true)
	}
}

// scanKeys looks for Escape, ctrl-c and N in one read from a raw terminal.
// An escape byte followed by '[' or 'O' starts a cursor or function key
// sequence, which is skipped whole.
func scanKeys(b []byte) (esc, next bool) {
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case 0x03:
			esc = true
		case 'n', 'N':
			next = true
		case 0x1b:
			if i+1 >= len(b) {
				esc = true
				break
			}
			switch b[i+1] {
			case '[':
				// CSI: parameters up to a final byte in 0x40..0x7e
				i += 2
				for i < len(b) && (b[i] < 0x40 || b[i] > 0x7e) {
					i++
				}
			case 'O':
				i += 2
			default:
				esc = true
			}
		}
	}
	return esc, next
}

func (c *console) Keys() control.Keys {
	return control.Keys{Escape: c.esc.Swap(false), Next: c.next.Swap(false)}
}

func (c *console) newline() string {
	if c.raw {
		return "\r\n"
	}
	return "\n"
}

func (c *console) Announce(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Print(line + c.newline())
}

func (c *console) Status(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pad := c.lastLen - len(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Printf("%s%*s\r", line, pad, "")
	c.lastLen = len(line)
}
