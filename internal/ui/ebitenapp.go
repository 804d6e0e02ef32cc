package ui

import (
	"fmt"

	"github.com/gb-core/dmgcore/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is a minimal ebiten viewer: it steps the Machine one frame per Update,
// forwards keyboard input to the joypad, and blits the RGBA framebuffer.
type App struct {
	cfg    Config
	m      *emu.Machine
	tex    *ebiten.Image
	paused bool
	fast   bool
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{cfg: cfg, m: m}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if a.m != nil {
		var btn emu.Buttons
		if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
			btn.Up = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
			btn.Down = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
			btn.Left = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
			btn.Right = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyZ) {
			btn.A = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyX) {
			btn.B = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyEnter) {
			btn.Start = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
			btn.Select = true
		}
		a.m.SetButtons(btn)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if a.m == nil {
		return nil
	}
	if a.paused {
		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			a.m.StepFrame()
		}
		return nil
	}
	steps := 1
	if a.fast {
		steps = 4
	}
	for i := 0; i < steps; i++ {
		a.m.StepFrame()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	if a.m != nil {
		a.tex.WritePixels(a.m.Framebuffer())
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)
	if a.paused {
		ebitenutil.DebugPrint(screen, "PAUSED (P to resume, N to step)")
	}
	if a.m != nil {
		if fault := a.m.CPU().Fault(); fault != nil {
			ebitenutil.DebugPrint(screen, fmt.Sprintf("HALTED: %v", fault))
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }
