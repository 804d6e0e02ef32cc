package cart

// MBC1 implements the MBC1 banking controller: ROM banking up to 2MB and
// RAM banking up to 32KB, per spec.md §4.1. Modeled after the teacher's
// internal/cart/mbc1.go but corrected to reproduce the documented
// bank-zero-translation quirk.
type MBC1 struct {
	rom []byte
	ram []byte

	romBank        byte // full 7-bit effective bank number, initial 1
	ramBank        byte // 2-bit RAM bank (RAM banking mode only), initial 0
	ramEnabled     bool
	romBankingMode bool // true = ROM banking mode (default)
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, romBank: 1, romBankingMode: true}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := 0x4000*int(m.romBank) + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := 0x2000*int(m.ramBank) + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBank = (m.romBank &^ 0x1F) | (value & 0x1F)
		m.applyBankZeroQuirk()
	case addr < 0x6000:
		if m.romBankingMode {
			m.romBank = (m.romBank &^ 0x60) | ((value & 0x03) << 5)
			m.applyBankZeroQuirk()
		} else {
			m.ramBank = value & 0x03
		}
	case addr < 0x8000:
		m.romBankingMode = (value & 1) == 0
		if m.romBankingMode {
			m.ramBank = 0
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := 0x2000*int(m.ramBank) + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// applyBankZeroQuirk reproduces the documented MBC1 bank-zero-translation
// rule: a rom_bank write that lands on {0x00,0x20,0x40,0x60} is bumped up
// by one, since the ROM banking register can never select bank 0.
func (m *MBC1) applyBankZeroQuirk() {
	switch m.romBank {
	case 0x00, 0x20, 0x40, 0x60:
		m.romBank++
	}
}

func (m *MBC1) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	copy(m.ram, data)
}
