package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/oplstream-go/internal/control"
)

const (
	windowW    = 760
	windowH    = 520
	minWindowW = 560
	minWindowH = 360

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
	maxLines  = 200
)

var (
	bgColor       = color.RGBA{192, 192, 192, 255}
	panelColor    = color.RGBA{192, 192, 192, 255}
	borderColor   = color.RGBA{128, 128, 128, 255}
	bevelLight    = color.RGBA{255, 255, 255, 255}
	bevelDarker   = color.RGBA{64, 64, 64, 255}
	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	errorColor    = color.RGBA{255, 96, 96, 255}
)

// game draws the runner's announcements and status line, and reports the
// real Escape and N key state to the runner.
type game struct {
	esc  atomic.Bool
	next atomic.Bool
	done atomic.Bool

	mu     sync.Mutex
	lines  []string
	status string

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame() *game {
	return &game{
		textCache: make(map[string]*ebiten.Image, 256),
		viewW:     windowW,
		viewH:     windowH,
	}
}

func (g *game) Keys() control.Keys {
	return control.Keys{Escape: g.esc.Load(), Next: g.next.Load()}
}

func (g *game) Announce(line string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines = append(g.lines, line)
	if len(g.lines) > maxLines {
		g.lines = g.lines[len(g.lines)-maxLines:]
	}
}

func (g *game) Status(line string) {
	g.mu.Lock()
	g.status = line
	g.mu.Unlock()
}

func (g *game) Update() error {
	if g.done.Load() {
		return ebiten.Termination
	}
	g.esc.Store(ebiten.IsKeyPressed(ebiten.KeyEscape))
	g.next.Store(ebiten.IsKeyPressed(ebiten.KeyN))
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	logRect := image.Rect(8, 8, g.viewW-8, g.viewH-lineH-32)
	statusRect := image.Rect(8, g.viewH-lineH-24, g.viewW-8, g.viewH-8)
	g.drawSunkenPanel(screen, logRect)
	g.drawPanel(screen, statusRect)

	g.mu.Lock()
	lines := g.lines
	status := g.status
	g.mu.Unlock()

	visible := (logRect.Dy() - 16) / lineH
	if visible < 0 {
		visible = 0
	}
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	maxChars := (logRect.Dx() - 16) / charW
	for i, l := range lines {
		var c color.Color = color.White
		if strings.HasPrefix(l, "ERROR:") {
			c = errorColor
		}
		g.drawText(screen, shortenEnd(l, maxChars), logRect.Min.X+8, logRect.Min.Y+8+i*lineH, c)
	}
	g.drawText(screen, status, statusRect.Min.X+8, statusRect.Min.Y+(statusRect.Dy()-lineH)/2, color.White)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBevel(screen, rect, bevelLight, bevelDarker)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawBevel(screen, rect, borderColor, bevelLight)
}

// drawBevel draws a one-pixel frame, light on top and left and dark on the
// bottom and right. Swapping the colors gives a sunken frame.
func drawBevel(screen *ebiten.Image, rect image.Rectangle, light, dark color.Color) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, light)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, light)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, dark)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, dark)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x, y int, c color.Color) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

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
	// ebiten owns the process's only audio context once a window is open
	if strings.EqualFold(cfg.Backend, "oto") {
		fmt.Fprintln(os.Stderr, "play_ost_ui: -backend oto is not available with a window; use ebiten or wav")
		return control.ExitPlayback
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

	g := newGame()
	r := &control.Runner{
		Files:      files,
		Repeat:     !cfg.NoRepeat,
		NewSession: newSession,
		Frontend:   g,
		Logger:     logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	code := control.ExitOK
	var eg errgroup.Group
	eg.Go(func() error {
		code = r.Run(ctx)
		g.done.Store(true)
		return nil
	})

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("oplstream player")
	runErr := ebiten.RunGame(g)
	// window closed or runner finished
	cancel()
	_ = eg.Wait()
	if runErr != nil && !errors.Is(runErr, ebiten.Termination) {
		log.Printf("play_ost_ui: %v", runErr)
		if code == control.ExitOK {
			code = control.ExitPlayback
		}
	}
	return code
}
