//go:build cgo

package window

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/renderer"
	"github.com/banshee-data/liveplot/internal/version"
)

// readoutHeight is the strip below the plot holding the cursor readout.
const readoutHeight = 20

// Run opens the window and drives r from ebiten's game loop. It blocks until
// the window is closed or r terminates, and must be called on the main
// goroutine.
func Run(ctx context.Context, r *renderer.Renderer) error {
	cfg := r.Config()
	ebiten.SetWindowTitle(cfg.Title + " (" + version.Version + ")")
	ebiten.SetWindowSize(cfg.Width, cfg.Height+readoutHeight)
	ebiten.SetTPS(renderer.TicksPerSecond(cfg.TickInterval))
	ebiten.SetWindowClosingHandled(true)

	g := &game{ctx: ctx, r: r, width: cfg.Width, height: cfg.Height}
	return ebiten.RunGame(g)
}

type game struct {
	ctx           context.Context
	r             *renderer.Renderer
	width, height int

	img     *ebiten.Image
	readout string
}

func (g *game) Update() error {
	if ebiten.IsWindowBeingClosed() || g.ctx.Err() != nil {
		g.r.Terminate()
		return ebiten.Termination
	}
	for _, code := range pressedKeys() {
		g.r.Key(code)
	}
	if g.r.Tick() {
		return ebiten.Termination
	}
	g.readout = g.r.Readout(ebiten.CursorPosition())
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	frame := g.r.Frame()
	if frame == nil {
		return
	}
	if g.img == nil {
		g.img = ebiten.NewImage(g.width, g.height)
	}
	g.img.WritePixels(frame.Pix)
	screen.DrawImage(g.img, nil)

	ebitenutil.DebugPrintAt(screen, g.readout, 8, g.height+2)
	if g.r.Config().ShowFPS {
		ebitenutil.DebugPrintAt(screen, g.r.FPS(), 8, 8)
	}
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.width, g.height + readoutHeight
}

var digitKeys = [...]ebiten.Key{
	ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
	ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

// pressedKeys returns the forwarded keys pressed since the last update.
func pressedKeys() []protocol.KeyCode {
	var codes []protocol.KeyCode
	if inpututil.IsKeyJustPressed(ebiten.KeyAltRight) {
		codes = append(codes, protocol.KeyAltRight)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		codes = append(codes, protocol.KeyUp)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		codes = append(codes, protocol.KeyDown)
	}
	for i, k := range digitKeys {
		if inpututil.IsKeyJustPressed(k) {
			codes = append(codes, protocol.KeyDigit0+protocol.KeyCode(i))
		}
	}
	return codes
}
