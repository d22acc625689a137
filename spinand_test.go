package spinand

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/cennian/spinand/nandsim"
)

func newTestDev(t *testing.T, simCfg nandsim.Config, cfg Config) (*Dev, *nandsim.Chip) {
	t.Helper()
	chip := nandsim.New(simCfg)
	dev, err := IdentifyConfig(chip, &gpiotest.Pin{N: "CS"}, cfg)
	if err != nil {
		t.Fatalf("IdentifyConfig() err=%v", err)
	}
	if err := dev.Init(); err != nil {
		t.Fatalf("Init() err=%v", err)
	}
	return dev, chip
}

func TestIdentifyKnownVendors(t *testing.T) {
	cases := []struct {
		mfr         byte
		name        string
		totalBlocks uint32
	}{
		{0xEF, "Winbond", 1024},
		{0xC8, "GigaDevice", 1024},
		{0x2C, "Micron", 1024},
		{0x52, "Alliance", 1024},
		{0xBA, "Zetta", 1024},
		{0x0B, "XTX", 128},
	}
	for _, tc := range cases {
		dev, _ := newTestDev(t, nandsim.Config{MfrID: tc.mfr}, Config{})
		if dev.Name() != tc.name {
			t.Errorf("mfr %#02x: Name() = %q, want %q", tc.mfr, dev.Name(), tc.name)
		}
		a := dev.Attr
		if a.PageDataSize != 2048 || a.SpareSize != 64 || a.PagesPerBlock != 64 {
			t.Errorf("%s: geometry = %d/%d/%d, want 2048/64/64",
				tc.name, a.PageDataSize, a.SpareSize, a.PagesPerBlock)
		}
		if a.TotalBlocks != tc.totalBlocks {
			t.Errorf("%s: TotalBlocks = %d, want %d", tc.name, a.TotalBlocks, tc.totalBlocks)
		}
		if a.ECCOption != ECCHardwareAuto {
			t.Errorf("%s: ECCOption = %v, want hardware auto", tc.name, a.ECCOption)
		}
		if dev.Ops.InitFlash == nil || dev.Ops.WritePageWithLayout == nil {
			t.Errorf("%s: vendor capability slots left unset", tc.name)
		}
	}
}

func TestIdentifyUnknownFallsBackToGeneric(t *testing.T) {
	dev, _ := newTestDev(t, nandsim.Config{MfrID: 0x01}, Config{})
	if dev.Name() != "Generic" {
		t.Fatalf("Name() = %q, want Generic", dev.Name())
	}

	a := dev.Attr
	if a.PageDataSize != 2048 || a.SpareSize != 64 || a.PagesPerBlock != 64 || a.TotalBlocks != 1024 {
		t.Errorf("geometry = %d/%d/%d/%d, want 2048/64/64/1024",
			a.PageDataSize, a.SpareSize, a.PagesPerBlock, a.TotalBlocks)
	}
	if a.ECCOption != ECCNone {
		t.Errorf("ECCOption = %v, want none", a.ECCOption)
	}

	// The generic driver leaves the optional slots unset; the wrappers
	// must still behave.
	if dev.Ops.InitFlash != nil || dev.Ops.ReleaseFlash != nil || dev.Ops.WritePageWithLayout != nil {
		t.Error("generic driver should leave init/release/layout slots unset")
	}
	if err := dev.Release(); err != nil {
		t.Errorf("Release() err=%v on unset slot", err)
	}
	if err := dev.WritePageWithLayout(0, 0, nil, nil, nil); err == nil {
		t.Error("WritePageWithLayout should fail on unset slot")
	}
}

func TestIdentifyNilBus(t *testing.T) {
	if _, err := Identify(nil, nil); err == nil {
		t.Fatal("Identify(nil, nil) should fail")
	}
}

func TestInitUnlocksBlocks(t *testing.T) {
	chip := nandsim.New(nandsim.Config{})
	// Power-up protection: all blocks locked.
	if err := chip.Tx([]byte{0x1F, 0xA0, 0x7C}, nil); err != nil {
		t.Fatalf("Tx() err=%v", err)
	}

	dev, err := Identify(chip, &gpiotest.Pin{N: "CS"})
	if err != nil {
		t.Fatalf("Identify() err=%v", err)
	}
	if dev.Name() != "Winbond" {
		t.Fatalf("Name() = %q, want Winbond", dev.Name())
	}
	if err := dev.Init(); err != nil {
		t.Fatalf("Init() err=%v", err)
	}
	if got := chip.BlockLock(); got != 0x00 {
		t.Errorf("block-lock register = %#02x after init, want 0x00", got)
	}
}

func TestNewGeneric(t *testing.T) {
	chip := nandsim.New(nandsim.Config{
		PageSize: 4096, SpareSize: 128, PagesPerBlock: 64, TotalBlocks: 2048,
	})
	g := Geometry{PageDataSize: 4096, SpareSize: 128, PagesPerBlock: 64, TotalBlocks: 2048}
	dev, err := NewGeneric(chip, &gpiotest.Pin{N: "CS"}, g, Config{})
	if err != nil {
		t.Fatalf("NewGeneric() err=%v", err)
	}
	if dev.Attr.PageDataSize != 4096 || dev.Attr.TotalBlocks != 2048 {
		t.Errorf("Attr = %+v, want supplied geometry", dev.Attr)
	}

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := dev.WritePage(3, 5, data, nil); err != nil {
		t.Fatalf("WritePage() err=%v", err)
	}
	back := make([]byte, len(data))
	if _, err := dev.ReadPage(3, 5, back, nil); err != nil {
		t.Fatalf("ReadPage() err=%v", err)
	}
	for i := range data {
		if back[i] != data[i] {
			t.Fatalf("read back %x, want %x", back, data)
		}
	}
}

func TestNewGenericRejectsBadGeometry(t *testing.T) {
	chip := nandsim.New(nandsim.Config{})
	cases := []Geometry{
		{},
		{PageDataSize: 2048},
		{PageDataSize: 2048, SpareSize: 64, PagesPerBlock: 64},
	}
	for _, g := range cases {
		if _, err := NewGeneric(chip, &gpiotest.Pin{N: "CS"}, g, Config{}); err == nil {
			t.Errorf("NewGeneric(%+v) should fail", g)
		}
	}
}

func TestVendorECCDecode(t *testing.T) {
	cases := []struct {
		name   string
		decode func(Status) (ReadResult, error)
		status byte
		want   ReadResult
		fail   bool
	}{
		{"2bit clean", decodeECC2Bit, 0x00, ReadClean, false},
		{"2bit 1-bit corrected", decodeECC2Bit, 0x10, ReadCorrected, false},
		{"2bit uncorrectable", decodeECC2Bit, 0x20, 0, true},
		{"2bit multi-bit corrected", decodeECC2Bit, 0x30, ReadCorrected, false},
		{"2bit ignores high bits", decodeECC2Bit, 0xC0, ReadClean, false},

		{"gd clean", decodeECCGigaDevice, 0x00, ReadClean, false},
		{"gd corrected low", decodeECCGigaDevice, 0x10, ReadCorrected, false},
		{"gd corrected high", decodeECCGigaDevice, 0x60, ReadCorrected, false},
		{"gd uncorrectable", decodeECCGigaDevice, 0x70, 0, true},

		{"micron clean", decodeECCMicron, 0x00, ReadClean, false},
		{"micron corrected", decodeECCMicron, 0x10, ReadCorrected, false},
		{"micron uncorrectable", decodeECCMicron, 0x20, 0, true},
		{"micron corrected rewrite", decodeECCMicron, 0x30, ReadCorrected, false},
	}
	for _, tc := range cases {
		res, err := tc.decode(Status(tc.status))
		if tc.fail {
			if !errors.Is(err, ErrUncorrectable) {
				t.Errorf("%s: err=%v, want ErrUncorrectable", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: err=%v", tc.name, err)
			continue
		}
		if res != tc.want {
			t.Errorf("%s: result=%v, want %v", tc.name, res, tc.want)
		}
	}
}
