//go:build !unix

package main

import (
	"os"

	"golang.org/x/term"
)

// terminalHost reads raw stdin with blocking reads. The reader goroutine is
// left behind on Stop; the process is about to exit.
type terminalHost struct {
	onKeys func([]byte)
	fd    int
	old   *term.State
}

func newTerminalHost(onKeys func([]byte)) *terminalHost {
	return &terminalHost{onKeys: onKeys}
}

func (h *terminalHost) Start() bool {
	h.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(h.fd) {
		return false
	}
	old, err := term.MakeRaw(h.fd)
	if err != nil {
		return false
	}
	h.old = old
	go func() {
		buf := make([]byte, 16)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				h.onKeys(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	return true
}

func (h *terminalHost) Stop() {
	if h.old != nil {
		_ = term.Restore(h.fd, h.old)
		h.old = nil
	}
}
