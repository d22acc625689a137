package spinand

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// SPI NAND commands (generic ONFI-style command set):
//   - [W25N01GV|8.1.1 Manufacturer and Device Identification]
//   - [GD5F1GQ4|Table 2: Command Set]
//   - [MT29F1G01|Command Definitions]
const (
	cmdReset           = 0xFF
	cmdGetFeature      = 0x0F
	cmdSetFeature      = 0x1F
	cmdReadID          = 0x9F
	cmdPageRead        = 0x13 // read page to cache
	cmdReadCache       = 0x03 // read from cache
	cmdReadCacheFast   = 0x0B // read from cache, fast variant
	cmdWriteEnable     = 0x06
	cmdWriteDisable    = 0x04
	cmdProgramLoad     = 0x02 // load data to cache, resets rest to all-ones
	cmdRandomDataInput = 0x84 // modify cache without reset
	cmdProgramExecute  = 0x10 // program cache to page
	cmdBlockErase      = 0xD8
)

// Feature register addresses.
const (
	regStatus    = 0xC0
	regBlockLock = 0xA0
)

// Busy-wait defaults.
const (
	defaultTimeout      = 500 * time.Millisecond
	defaultPollInterval = 100 * time.Microsecond
)

// nandBus executes the command protocol against one chip over a shared SPI
// connection. It holds no protocol state between calls; the geometry and the
// vendor ECC decode are fixed at construction by the selected driver.
type nandBus struct {
	conn spi.Conn
	cs   gpio.PinIO

	pageSize      uint32
	spareSize     uint32
	pagesPerBlock uint32
	totalBlocks   uint32

	timeout      time.Duration
	pollInterval time.Duration

	// decodeECC maps the post-read status register to a read outcome.
	// The field width and "uncorrectable" encoding vary by manufacturer.
	decodeECC func(st Status) (ReadResult, error)
}

func newBus(conn spi.Conn, cs gpio.PinIO, cfg Config) *nandBus {
	b := &nandBus{
		conn:         conn,
		cs:           cs,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		decodeECC:    decodeECC2Bit,
	}
	if b.timeout == 0 {
		b.timeout = defaultTimeout
	}
	if b.pollInterval == 0 {
		b.pollInterval = defaultPollInterval
	}
	return b
}

// tx wraps one full-duplex exchange with CS assertion. Response bytes land in
// buf at the offsets following the transmitted command bytes.
func (b *nandBus) tx(buf []byte) (err error) {
	if err = b.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := b.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = b.conn.Tx(buf, buf)
	return
}

func (b *nandBus) writeEnable() error {
	return b.tx([]byte{cmdWriteEnable})
}

// readID returns the manufacturer and device id bytes.
// Framing: opcode, one dummy byte, then the two id bytes.
func (b *nandBus) readID() (mfr, dev byte, err error) {
	buf := []byte{cmdReadID, 0, 0, 0}
	if err = b.tx(buf); err != nil {
		return 0, 0, fmt.Errorf("read id: %w", err)
	}
	return buf[2], buf[3], nil
}

func (b *nandBus) readStatus() (Status, error) {
	buf := []byte{cmdGetFeature, regStatus, 0}
	if err := b.tx(buf); err != nil {
		return 0, err
	}
	return Status(buf[2]), nil
}

func (b *nandBus) setFeature(reg, val byte) error {
	return b.tx([]byte{cmdSetFeature, reg, val})
}

// waitBusy polls the status register until the OIP bit clears and returns the
// final status byte, or fails with ErrTimeout once the bound expires. The
// ticker yields between polls so concurrent bus users are not starved.
func (b *nandBus) waitBusy(timeout time.Duration) (Status, error) {
	// Fast path
	st, err := b.readStatus()
	if err != nil {
		return 0, err
	}
	if !st.Busy() {
		return st, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return 0, fmt.Errorf("busy for %v (status %v): %w", timeout, st, ErrTimeout)
		case <-ticker.C:
			st, err = b.readStatus()
			if err != nil {
				return 0, err
			}
			if !st.Busy() {
				return st, nil
			}
		}
	}
}

// reset issues the reset command and waits for the chip to settle.
func (b *nandBus) reset() error {
	if err := b.tx([]byte{cmdReset}); err != nil {
		return err
	}
	_, err := b.waitBusy(b.timeout)
	return err
}

// unlockBlocks clears the block-lock register so program and erase take
// effect. Every vendor observed so far powers up write-protected.
func (b *nandBus) unlockBlocks() error {
	return b.setFeature(regBlockLock, 0x00)
}

// Status represents the status register of the NAND chip (feature 0xC0).
//
//	Bits| [W25N01GV|7.3 Status Register-3]
//	----+---------------------------------
//	7:4 | Vendor ECC status field (width and encoding vary)
//	3   | P-FAIL: Program failure
//	2   | E-FAIL: Erase failure
//	1   | WEL: Write enable latch
//	0   | OIP/BUSY: Operation in progress
type Status byte

func (st Status) ProgramFail() bool  { return st&(1<<3) != 0 }
func (st Status) EraseFail() bool    { return st&(1<<2) != 0 }
func (st Status) WriteEnabled() bool { return st&(1<<1) != 0 }
func (st Status) Busy() bool         { return st&(1<<0) != 0 }

func (st Status) String() string {
	b := fmt.Sprintf("%08b", byte(st))
	s := []string{}
	if st.ProgramFail() {
		s = append(s, "P-FAIL")
	}
	if st.EraseFail() {
		s = append(s, "E-FAIL")
	}
	if st.WriteEnabled() {
		s = append(s, "WEL")
	}
	if st.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
