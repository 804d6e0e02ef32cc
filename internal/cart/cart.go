// Package cart owns cartridge ROM/RAM and the banking controllers that
// translate CPU addresses into ROM/RAM offsets.
package cart

import "fmt"

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
// Implementations are ROM-only or MBC1; addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
}

// BatteryBacked is implemented by cartridges with external RAM so the
// host can persist/restore it across runs (not a save-state: just RAM).
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// New picks a Cartridge implementation based on the ROM header. Cartridge
// types outside {NoMBC, MBC1} are a Non-goal (spec.md §1) and a fatal
// startup error per spec.md §6/§7, not a silent fallback.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, fmt.Errorf("parse cartridge header: %w", err)
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes), nil
	default:
		return nil, fmt.Errorf("unsupported cartridge type 0x%02X (%s)", h.CartType, h.CartTypeStr)
	}
}
