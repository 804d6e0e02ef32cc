// Package emu wires together the CPU, bus, PPU, timer and cartridge into a
// runnable Game Boy machine, presenting a frame/input API for callers such
// as cmd/gbemu and internal/ui.
package emu

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gb-core/dmgcore/internal/bus"
	"github.com/gb-core/dmgcore/internal/cart"
	"github.com/gb-core/dmgcore/internal/cpu"
)

// cyclesPerFrame is the DMG's 70224 T-cycles per 59.7 Hz frame.
const cyclesPerFrame = 70224

// Buttons is the joypad state for one input sample.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Start {
		m |= bus.JoypStart
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Right {
		m |= bus.JoypRight
	}
	return m
}

// Machine owns one emulated console: cartridge, bus, CPU and the RGBA
// framebuffer presented to a host UI.
type Machine struct {
	cfg  Config
	w, h int

	bus *bus.Bus
	cpu *cpu.CPU

	fb []byte // RGBA 160x144*4, derived from the PPU's ARGB framebuffer

	romPath string
	boot    []byte
}

// New constructs a Machine with no cartridge loaded; LoadCartridge must be
// called before running real software.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, w: 160, h: 144}
	m.fb = make([]byte, m.w*m.h*4)
	rom := make([]byte, 0x8000)
	b, _ := bus.New(rom) // ROM-only placeholder cartridge until LoadCartridge
	m.bus = b
	m.cpu = cpu.New(b)
	m.cpu.ResetNoBoot()
	m.initPostBootIO()
	return m
}

// initPostBootIO programs the IO registers to the values the DMG boot ROM
// leaves behind, so games run correctly without one.
func (m *Machine) initPostBootIO() {
	m.bus.Write(0xFF00, 0xCF)
	m.bus.Write(0xFF05, 0x00)
	m.bus.Write(0xFF06, 0x00)
	m.bus.Write(0xFF07, 0x00)
	m.bus.Write(0xFF40, 0x91)
	m.bus.Write(0xFF42, 0x00)
	m.bus.Write(0xFF43, 0x00)
	m.bus.Write(0xFF45, 0x00)
	m.bus.Write(0xFF47, 0xFC)
	m.bus.Write(0xFF48, 0xFF)
	m.bus.Write(0xFF49, 0xFF)
	m.bus.Write(0xFF4A, 0x00)
	m.bus.Write(0xFF4B, 0x00)
	m.bus.Write(0xFFFF, 0x00)
}

// LoadCartridge replaces the current bus/cartridge with one built from rom,
// running from an attached boot ROM when given one, or from the standard
// post-boot register state otherwise.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	b, err := bus.New(rom)
	if err != nil {
		return fmt.Errorf("emu: load cartridge: %w", err)
	}
	m.bus = b
	m.cpu = cpu.New(b)
	m.boot = boot
	if len(boot) >= 0x100 {
		m.bus.SetBootROM(boot)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
		m.initPostBootIO()
	}
	return nil
}

// LoadROMFromFile reads a ROM from disk and loads it, remembering the path
// for battery-RAM sidecar file placement.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read ROM: %w", err)
	}
	if err := m.LoadCartridge(data, m.boot); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path last loaded via LoadROMFromFile, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// SetBootROM maps a DMG boot ROM on the current bus and remembers it so the
// next LoadROMFromFile call runs it. LoadCartridge uses its own boot argument
// instead and replaces the remembered one.
func (m *Machine) SetBootROM(data []byte) {
	m.boot = data
	if len(data) >= 0x100 {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter redirects bytes written to the serial port (0xFF01/0xFF02),
// used by headless test-ROM runners to detect pass/fail banners.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetButtons updates which joypad buttons are currently held.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetJoypadState(b.mask()) }

// SaveBattery returns the cartridge's external RAM contents, if it has
// battery-backed RAM.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBattery restores external RAM contents saved by SaveBattery.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// StepFrame runs the machine for one video frame (70224 T-cycles) and
// refreshes the RGBA framebuffer.
func (m *Machine) StepFrame() {
	m.runFrame()
	m.present()
}

// StepFrameNoRender runs one frame's worth of cycles without converting the
// PPU's framebuffer to RGBA, for headless test-ROM loops that only care
// about serial output.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	target := cyclesPerFrame
	spent := 0
	for spent < target {
		if m.cfg.Trace {
			pc := m.cpu.PC
			op := m.bus.Read(pc)
			cyc := m.cpu.Step()
			log.Printf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X SP=%04X",
				pc, op, cyc, m.cpu.A, m.cpu.F, m.cpu.SP)
			spent += cyc
		} else {
			spent += m.cpu.Step()
		}
		if m.cpu.Fault() != nil {
			break
		}
	}
}

// present converts the PPU's ARGB8888 framebuffer into the RGBA byte slice
// callers read via Framebuffer.
func (m *Machine) present() {
	src := m.bus.PPU().Framebuffer()
	for i, px := range src {
		o := i * 4
		m.fb[o+0] = byte(px >> 16) // R
		m.fb[o+1] = byte(px >> 8)  // G
		m.fb[o+2] = byte(px)       // B
		m.fb[o+3] = byte(px >> 24) // A
	}
}

// Framebuffer returns the current RGBA 160x144 frame.
func (m *Machine) Framebuffer() []byte { return m.fb }

// CPU exposes the underlying CPU for tools that need register-level access.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// Bus exposes the underlying bus for tools that need direct IO access.
func (m *Machine) Bus() *bus.Bus { return m.bus }
