package spinand

import "fmt"

// The generic page operations implement the common SPI NAND transport
// mechanics shared by every known vendor: page reads go through the chip
// cache register, programs stage into it, and both end with a status poll.
// Row address is block*pagesPerBlock+page, sent big-endian over 3 bytes.
// Column addresses are 16-bit big-endian; the spare region starts at
// column = page data size.

// readPageGeneric loads the page into the cache, decodes the vendor ECC
// field from the post-load status, then transfers the requested regions.
// On an uncorrectable result no transfer happens: the cache contents are
// not trustworthy.
func readPageGeneric(d *Dev, block, page uint32, data, spare []byte) (ReadResult, error) {
	b := d.Attr.priv
	row := block*b.pagesPerBlock + page

	if err := b.tx([]byte{cmdPageRead, byte(row >> 16), byte(row >> 8), byte(row)}); err != nil {
		return 0, fmt.Errorf("page read blk %d pg %d: %w", block, page, err)
	}
	st, err := b.waitBusy(b.timeout)
	if err != nil {
		return 0, fmt.Errorf("page read blk %d pg %d: %w", block, page, err)
	}

	res, err := b.decodeECC(st)
	if err != nil {
		return 0, fmt.Errorf("blk %d pg %d (status %v): %w", block, page, st, err)
	}

	if len(data) > 0 {
		if err := b.readCache(0, data); err != nil {
			return 0, err
		}
	}
	if len(spare) > 0 {
		if err := b.readCache(uint16(b.pageSize), spare); err != nil {
			return 0, err
		}
	}
	return res, nil
}

// readCache transfers len(dst) bytes from the chip cache starting at col.
// Framing: opcode, 2-byte column, 1 dummy byte, then the data clocks out.
func (b *nandBus) readCache(col uint16, dst []byte) error {
	buf := make([]byte, 4+len(dst))
	buf[0] = cmdReadCache
	buf[1] = byte(col >> 8)
	buf[2] = byte(col)
	// buf[3] dummy

	if err := b.tx(buf); err != nil {
		return fmt.Errorf("read cache col %d: %w", col, err)
	}
	copy(dst, buf[4:])
	return nil
}

// writePageGeneric stages data and spare into the cache and programs the
// page. Loading order matters: program-load resets the rest of the cache to
// all-ones, so when data was already staged the spare must go in through
// random-data-input, which modifies the cache without resetting it.
func writePageGeneric(d *Dev, block, page uint32, data, spare []byte) error {
	b := d.Attr.priv
	row := block*b.pagesPerBlock + page

	if err := b.writeEnable(); err != nil {
		return fmt.Errorf("write enable: %w", err)
	}

	if len(data) > 0 {
		if err := b.loadCache(cmdProgramLoad, 0, data); err != nil {
			return err
		}
	}
	if len(spare) > 0 {
		op := byte(cmdProgramLoad)
		if len(data) > 0 {
			op = cmdRandomDataInput
		}
		if err := b.loadCache(op, uint16(b.pageSize), spare); err != nil {
			return err
		}
	}

	if err := b.tx([]byte{cmdProgramExecute, byte(row >> 16), byte(row >> 8), byte(row)}); err != nil {
		return fmt.Errorf("program execute blk %d pg %d: %w", block, page, err)
	}
	st, err := b.waitBusy(b.timeout)
	if err != nil {
		return fmt.Errorf("program blk %d pg %d: %w", block, page, err)
	}
	if st.ProgramFail() {
		return fmt.Errorf("program failed blk %d pg %d (status %v): %w", block, page, st, ErrBadBlock)
	}
	return nil
}

// loadCache sends one addressed load session: opcode, 2-byte column, then
// the payload in the same exchange.
func (b *nandBus) loadCache(op byte, col uint16, payload []byte) error {
	buf := make([]byte, 3+len(payload))
	buf[0] = op
	buf[1] = byte(col >> 8)
	buf[2] = byte(col)
	copy(buf[3:], payload)

	if err := b.tx(buf); err != nil {
		return fmt.Errorf("cache load 0x%02X col %d: %w", op, col, err)
	}
	return nil
}

// eraseBlockGeneric erases one block. The row address of a block erase is
// the index of its first page. Retry and remap policy belongs upstream.
func eraseBlockGeneric(d *Dev, block uint32) error {
	b := d.Attr.priv
	row := block * b.pagesPerBlock

	if err := b.writeEnable(); err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	if err := b.tx([]byte{cmdBlockErase, byte(row >> 16), byte(row >> 8), byte(row)}); err != nil {
		return fmt.Errorf("block erase blk %d: %w", block, err)
	}
	st, err := b.waitBusy(b.timeout)
	if err != nil {
		return fmt.Errorf("erase blk %d: %w", block, err)
	}
	if st.EraseFail() {
		return fmt.Errorf("erase failed blk %d (status %v): %w", block, st, ErrBadBlock)
	}
	return nil
}

// writePageWithLayoutGeneric derives the spare area from tag and ECC
// metadata through the device's spare encoder, then delegates to the
// generic write. Installed by drivers whose chips do hardware ECC.
func writePageWithLayoutGeneric(d *Dev, block, page uint32, data, ecc, tag []byte) error {
	b := d.Attr.priv
	spare := make([]byte, b.spareSize)
	for i := range spare {
		spare[i] = 0xFF
	}
	if len(tag) > 0 || len(ecc) > 0 {
		d.makeSpare(spare, tag, ecc)
	}
	return writePageGeneric(d, block, page, data, spare)
}
