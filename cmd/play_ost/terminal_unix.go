//go:build unix

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// terminalHost reads raw, non-blocking stdin and hands each chunk to onKeys.
type terminalHost struct {
	onKeys       func([]byte)
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

func newTerminalHost(onKeys func([]byte)) *terminalHost {
	return &terminalHost{
		onKeys: onKeys,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start switches stdin to raw non-blocking mode and starts reading. It
// reports whether raw mode is active; without a terminal nothing is read.
func (h *terminalHost) Start() bool {
	h.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(h.fd) {
		close(h.done)
		return false
	}
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "play_ost: failed to set raw mode: %v\n", err)
		close(h.done)
		return false
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "play_ost: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return false
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		buf := make([]byte, 16)
		for {
			select {
			case <-h.stopCh:
				return
			default:
			}
			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				h.onKeys(buf[:n])
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || n <= 0 {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
		}
	}()
	return true
}

// Stop ends the reader and restores the terminal.
func (h *terminalHost) Stop() {
	h.stopped.Do(func() { close(h.stopCh) })
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
