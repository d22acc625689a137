package spinand

import "fmt"

// Per-vendor drivers. Every vendor observed so far shares the generic ONFI
// transport and differs only in geometry, the unlock-at-init requirement and
// the ECC status field encoding, so each constructor parameterizes the
// generic operations rather than supplying its own transport.
//
// The ECC mappings below follow the respective datasheets; the encoding of
// "uncorrectable" is NOT uniform across manufacturers and must never be
// inferred from another vendor's table.

// decodeECC2Bit decodes the 2-bit ECC field at bits 5:4.
//
//	[W25N01GV|7.3 Status Register-3 ECC-1/ECC-0]:
//	  00: no bit errors
//	  01: 1-bit error corrected
//	  10: uncorrectable, data not valid
//	  11: more than 1 bit corrected, rewrite recommended
//
// Alliance AS5F34G04SND, XTX XT26G and Zetta encode the same way.
func decodeECC2Bit(st Status) (ReadResult, error) {
	switch code := (byte(st) >> 4) & 0x3; code {
	case 0:
		return ReadClean, nil
	case 2:
		return 0, ErrUncorrectable
	default: // 1, 3
		return ReadCorrected, nil
	}
}

// decodeECCGigaDevice decodes the 3-bit field at bits 6:4.
//
//	[GD5F1GQ4|Status Register ECCS2-ECCS0]:
//	  000: no bit errors
//	  001..110: errors corrected
//	  111: uncorrectable
func decodeECCGigaDevice(st Status) (ReadResult, error) {
	switch code := (byte(st) >> 4) & 0x7; code {
	case 0:
		return ReadClean, nil
	case 7:
		return 0, ErrUncorrectable
	default:
		return ReadCorrected, nil
	}
}

// decodeECCMicron decodes the 3-bit field at bits 6:4.
//
//	[MT29F1G01|ECC protection]:
//	  000: no bit errors
//	  001: 1-3 bits corrected
//	  011: 4-6 bits corrected, rewrite recommended
//	  010: uncorrectable
//
// Note the failure code sits between two corrected codes.
func decodeECCMicron(st Status) (ReadResult, error) {
	switch code := (byte(st) >> 4) & 0x7; code {
	case 0:
		return ReadClean, nil
	case 2:
		return 0, ErrUncorrectable
	default:
		return ReadCorrected, nil
	}
}

// defaultGeometry is the best-effort shape assumed for unknown chips:
// 2KiB pages with 64-byte spare, 64 pages per block, 1Gbit total.
var defaultGeometry = Geometry{
	PageDataSize:  2048,
	SpareSize:     64,
	PagesPerBlock: 64,
	TotalBlocks:   1024,
}

// initVendorFlash is the InitFlash slot shared by all vendor drivers:
// reset, wait for the chip to settle, then clear block protection.
// Without the unlock every program and erase silently no-ops.
func initVendorFlash(d *Dev) error {
	b := d.Attr.priv
	if err := b.reset(); err != nil {
		return fmt.Errorf("%s reset: %w", d.name, err)
	}
	if err := b.unlockBlocks(); err != nil {
		return fmt.Errorf("%s block unlock: %w", d.name, err)
	}
	return nil
}

// vendorAttrOps builds the standard hardware-ECC vendor table: generic
// transport, shared init, layout-deriving write.
func vendorAttrOps(b *nandBus, g Geometry) (*Attr, *Ops) {
	b.setGeometry(g)
	attr, ops := attrOps(b, ECCHardwareAuto)
	ops.InitFlash = initVendorFlash
	ops.WritePageWithLayout = writePageWithLayoutGeneric
	return attr, ops
}

// Winbond W25N01GV and kin.
func initWinbond(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECC2Bit
	return vendorAttrOps(b, defaultGeometry)
}

// GigaDevice GD5F1GQ4. Same transport, 3-bit ECC field.
func initGigaDevice(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECCGigaDevice
	return vendorAttrOps(b, defaultGeometry)
}

// Micron MT29F1G01. 3-bit ECC field with 010 as the failure code.
func initMicron(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECCMicron
	return vendorAttrOps(b, defaultGeometry)
}

// Alliance AS5F34G04SND. ECC encoding matches Winbond.
func initAlliance(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECC2Bit
	return vendorAttrOps(b, defaultGeometry)
}

// Zetta. Winbond-compatible command set and ECC encoding.
func initZetta(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECC2Bit
	return vendorAttrOps(b, defaultGeometry)
}

// XTX XT26G08D. Winbond-compatible ECC encoding, smaller array.
func initXTX(b *nandBus) (*Attr, *Ops) {
	b.decodeECC = decodeECC2Bit
	g := defaultGeometry
	g.TotalBlocks = 128
	return vendorAttrOps(b, g)
}

// initGeneric is the fallback for manufacturer ids absent from the table:
// generic transport over default geometry, no hardware ECC assumed, and no
// init/release/layout slots. Unset slots are never called.
func initGeneric(b *nandBus) (*Attr, *Ops) {
	b.setGeometry(defaultGeometry)
	return attrOps(b, ECCNone)
}
