package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/oplstream-go/internal/control"
)

const maxLines = 200

type announceMsg string
type statusMsg string
type doneMsg struct{}

// frontend forwards runner output to the bubbletea program and turns key
// messages into one-poll key pulses.
type frontend struct {
	prog *tea.Program
	esc  atomic.Bool
	next atomic.Bool
}

func (f *frontend) Keys() control.Keys {
	return control.Keys{Escape: f.esc.Swap(false), Next: f.next.Swap(false)}
}

func (f *frontend) Announce(line string) { f.prog.Send(announceMsg(line)) }
func (f *frontend) Status(line string)   { f.prog.Send(statusMsg(line)) }

type model struct {
	fe     *frontend
	cancel context.CancelFunc
	lines  []string
	status string
	done   bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.fe.esc.Store(true)
		case "n", "N":
			m.fe.next.Store(true)
		case "ctrl+c", "q":
			m.cancel()
		}
	case announceMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
	case statusMsg:
		m.status = string(msg)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("oplstream"))
	b.WriteString("\n")
	for _, l := range m.lines {
		if strings.HasPrefix(l, "ERROR:") {
			b.WriteString(errorStyle.Render(l))
		} else {
			b.WriteString(textStyle.Render(l))
		}
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString(hintStyle.Render("esc: quit  n: next tune  q/ctrl+c: quit now"))
		b.WriteString("\n")
	}
	return b.String()
}

func main() {
	os.Exit(run())
}

func run() int {
	var cfg control.Config
	cfg.RegisterFlags(flag.CommandLine, "oto")
	flag.Parse()
	files := cfg.Files(flag.Args())

	if cfg.RenderDir != "" {
		return control.RenderAll(files, cfg.RenderDir, cfg.SampleRate, func(s string) { fmt.Println(s) })
	}

	// stderr would tear the TUI, so logs go to -log or nowhere
	logger, closer, err := cfg.Logger(io.Discard)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fe := &frontend{}
	prog := tea.NewProgram(model{fe: fe, cancel: cancel})
	fe.prog = prog

	r := &control.Runner{
		Files:      files,
		Repeat:     !cfg.NoRepeat,
		NewSession: newSession,
		Frontend:   fe,
		Logger:     logger,
	}

	code := control.ExitOK
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		code = r.Run(gctx)
		prog.Send(doneMsg{})
		return nil
	})
	g.Go(func() error {
		_, err := prog.Run()
		cancel()
		return err
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code == control.ExitOK {
			code = control.ExitPlayback
		}
	}
	return code
}
