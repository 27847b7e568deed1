package control

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cbegin/oplstream-go"
	"github.com/cbegin/oplstream-go/internal/ost"
)

const DefaultPoll = 10 * time.Millisecond

// Session is the part of *oplstream.Session the runner drives.
type Session interface {
	Init(song []byte, computeTotalTime bool) error
	Stop() error
	Status() oplstream.Status
	RepeatSignal() bool
}

// Runner plays a list of tunes. With Repeat set a single tune loops forever
// and a list of tunes cycles; otherwise each tune stops at its repeat point
// and the list plays once. Escape quits and N skips to the next tune.
type Runner struct {
	Files      []string
	Repeat     bool
	NewSession func() Session
	Frontend   Frontend
	Logger     *log.Logger
	Poll       time.Duration
	Load       func(path string) ([]byte, error)
}

type outcome int

const (
	finished outcome = iota
	skipped
	quit
)

// Run plays the playlist and returns the process exit code: 0, or the code
// of the first failure. Tunes that fail are reported and skipped.
func (r *Runner) Run(ctx context.Context) int {
	fe := r.Frontend
	if len(r.Files) == 0 {
		fe.Announce("ERROR: No OST tunes supplied.")
		return ExitNoFiles
	}
	if r.Logger == nil {
		r.Logger = log.New(io.Discard, "", 0)
	}
	if r.Poll <= 0 {
		r.Poll = DefaultPoll
	}
	if r.Load == nil {
		r.Load = LoadFile
	}

	repeatTune := r.Repeat && len(r.Files) == 1
	repeatList := r.Repeat && len(r.Files) > 1
	exit := ExitOK
	for {
		played := false
		for _, path := range r.Files {
			res, err := r.play(ctx, path, repeatTune)
			if err != nil {
				fe.Announce("ERROR: " + err.Error())
				r.Logger.Printf("%s: %v", path, err)
				if exit == ExitOK {
					exit = ExitCode(err)
				}
				continue
			}
			played = true
			if res == quit {
				repeatList = false
				break
			}
		}
		// a list where nothing plays would spin forever
		if !repeatList || !played {
			break
		}
	}
	fe.Announce("Thanks for playing!")
	return exit
}

func (r *Runner) play(ctx context.Context, path string, repeatTune bool) (outcome, error) {
	fe := r.Frontend
	data, err := r.Load(path)
	if err != nil {
		return finished, err
	}
	if err := Validate(data); err != nil {
		return finished, err
	}
	s := r.NewSession()
	if err := s.Init(data, !repeatTune); err != nil {
		return finished, fmt.Errorf("cannot play tune '%s': %w", path, err)
	}
	defer func() {
		if err := s.Stop(); err != nil {
			r.Logger.Printf("%s: %v", path, err)
		}
	}()

	multi := len(r.Files) > 1
	fe.Announce(fmt.Sprintf("Playing '%s'...", path))
	fe.Announce("")
	fe.Announce("Description:")
	fe.Announce("~~~~~~~~~~~~")
	for _, line := range strings.Split(ost.Description(data), "\n") {
		fe.Announce(line)
	}
	fe.Announce("")
	if multi {
		fe.Announce("Hit ESCAPE to quit, or N for next tune.")
	} else {
		fe.Announce("Hit ESCAPE to quit.")
	}

	var esc, next KeyEdge
	t := time.NewTicker(r.Poll)
	defer t.Stop()
	defer fe.Status("")
	for {
		select {
		case <-ctx.Done():
			return quit, nil
		case <-t.C:
		}
		k := fe.Keys()
		if esc.Update(k.Escape) {
			return quit, nil
		}
		if multi && next.Update(k.Next) {
			return skipped, nil
		}
		fe.Status(FormatStatus(s.Status(), !repeatTune))
		if !repeatTune && s.RepeatSignal() {
			return finished, nil
		}
	}
}

// FormatStatus renders "[ line | pos / len | h:mm:ss ]", with the total time
// appended when withTotal is set.
func FormatStatus(st oplstream.Status, withTotal bool) string {
	s := fmt.Sprintf("[ %02d  |  %02d / %02d  |  %s", st.Line, st.Position, st.Length, clock(st.PlayTime))
	if withTotal {
		s += " / " + clock(st.Total)
	}
	return s + " ]"
}

func clock(secs uint32) string {
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
