// Package nandsim emulates one SPI NAND chip at the byte-level command
// protocol, for exercising driver logic without hardware. The Chip
// implements spi.Conn, so code written against a real bus runs against it
// unchanged: command opcodes, address widths, column addressing and cache
// semantics all match the generic SPI NAND command set.
package nandsim

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// Command opcodes and registers understood by the chip.
const (
	cmdReset           = 0xFF
	cmdGetFeature      = 0x0F
	cmdSetFeature      = 0x1F
	cmdReadID          = 0x9F
	cmdPageRead        = 0x13
	cmdReadCache       = 0x03
	cmdReadCacheFast   = 0x0B
	cmdWriteEnable     = 0x06
	cmdWriteDisable    = 0x04
	cmdProgramLoad     = 0x02
	cmdRandomDataInput = 0x84
	cmdProgramExecute  = 0x10
	cmdBlockErase      = 0xD8

	regStatus    = 0xC0
	regBlockLock = 0xA0
)

// Status register bits.
const (
	srBusy        = 1 << 0
	srWEL         = 1 << 1
	srEraseFail   = 1 << 2
	srProgramFail = 1 << 3
)

// Config sets the emulated chip's shape and identity. Zero fields take the
// defaults of a 1Gbit part: 2048-byte pages, 64-byte spare, 64 pages per
// block, 1024 blocks, Winbond id 0xEF/0xAA.
type Config struct {
	PageSize      uint32
	SpareSize     uint32
	PagesPerBlock uint32
	TotalBlocks   uint32
	MfrID         byte
	DevID         byte
}

func (c *Config) setDefaults() {
	if c.PageSize == 0 {
		c.PageSize = 2048
	}
	if c.SpareSize == 0 {
		c.SpareSize = 64
	}
	if c.PagesPerBlock == 0 {
		c.PagesPerBlock = 64
	}
	if c.TotalBlocks == 0 {
		c.TotalBlocks = 1024
	}
	if c.MfrID == 0 {
		c.MfrID = 0xEF
	}
	if c.DevID == 0 {
		c.DevID = 0xAA
	}
}

// page holds one page's persistent storage. Bits only clear on program;
// only a block erase sets them back to one.
type page struct {
	data  []byte
	spare []byte
}

// Chip is one emulated SPI NAND chip. Storage is a lazily-allocated
// two-level table: a block's page table appears on first touch and a page's
// storage on first program, so large address spaces stay cheap until used.
type Chip struct {
	cfg Config

	mu      sync.Mutex
	blocks  map[uint32][]*page
	erased  map[uint32][]bool
	cache   []byte
	status  byte
	lock    byte // block-lock feature register
	wel     bool
	loading bool // expecting a raw payload for the cache
	col     int
	forced  byte // bits ORed into every status read
}

// New builds a chip with every block erased.
func New(cfg Config) *Chip {
	cfg.setDefaults()
	c := &Chip{cfg: cfg}
	c.Reset()
	return c
}

// Reset releases all lazily-allocated storage back to the erased state and
// clears the cache register and transport-session state.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = make(map[uint32][]*page)
	c.erased = make(map[uint32][]bool)
	c.cache = allOnes(int(c.cfg.PageSize + c.cfg.SpareSize))
	c.status = 0
	c.lock = 0
	c.wel = false
	c.loading = false
	c.col = 0
	c.forced = 0
}

// ForceStatusBits ORs mask into every subsequent status read. Tests use it
// to hold the busy bit or present vendor ECC codes the emulation itself
// never produces. Pass 0 to clear.
func (c *Chip) ForceStatusBits(mask byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced = mask
}

// Erased reports whether the page has been erased and not programmed since.
func (c *Chip) Erased(block, pg uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.erased[block]
	if !ok || int(pg) >= len(e) {
		return true
	}
	return e[pg]
}

// BlockLock returns the current block-lock feature register value.
func (c *Chip) BlockLock() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock
}

func (c *Chip) String() string {
	return fmt.Sprintf("nandsim(%d blk × %d pg × %d+%d B)",
		c.cfg.TotalBlocks, c.cfg.PagesPerBlock, c.cfg.PageSize, c.cfg.SpareSize)
}

// Duplex implements conn.Conn.
func (c *Chip) Duplex() conn.Duplex { return conn.Full }

// TxPackets implements spi.Conn.
func (c *Chip) TxPackets(p []spi.Packet) error {
	for i := range p {
		if err := c.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

// Tx implements conn.Conn: one chip-select session. The first transmitted
// byte is the command unless a program-load or random-data-input left the
// chip expecting a raw payload, in which case the whole write buffer is
// merged into the cache at the column cursor.
func (c *Chip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(w) == 0 {
		return nil
	}
	if len(r) != 0 && len(r) != len(w) {
		return fmt.Errorf("nandsim: unequal tx/rx lengths %d/%d", len(w), len(r))
	}

	if c.loading {
		c.loadPayload(w)
		c.loading = false
		return nil
	}

	switch cmd := w[0]; cmd {
	case cmdReset:
		fill(c.cache, 0xFF)
		c.status = 0
		c.wel = false
		c.loading = false

	case cmdGetFeature: // opcode, register, out byte
		if len(w) >= 3 && len(r) >= 3 {
			switch w[1] {
			case regStatus:
				r[2] = c.status | c.forced
			case regBlockLock:
				r[2] = c.lock
			}
		}

	case cmdSetFeature: // opcode, register, value
		if len(w) >= 3 && w[1] == regBlockLock {
			c.lock = w[2]
		}

	case cmdReadID: // opcode, dummy, 2 id bytes out
		if len(r) >= 4 {
			r[2] = c.cfg.MfrID
			r[3] = c.cfg.DevID
		}

	case cmdWriteEnable:
		c.wel = true
		c.status |= srWEL

	case cmdWriteDisable:
		c.wel = false
		c.status &^= srWEL

	case cmdPageRead: // opcode, 3-byte row
		if len(w) >= 4 {
			c.pageReadToCache(row(w[1:4]))
		}

	case cmdReadCache, cmdReadCacheFast: // opcode, 2-byte col, dummy, data out
		if len(w) >= 4 && len(r) > 4 {
			col := int(w[1])<<8 | int(w[2])
			if col < len(c.cache) {
				copy(r[4:], c.cache[col:])
			}
		}

	case cmdProgramLoad: // opcode, 2-byte col, optional payload
		if len(w) >= 3 {
			fill(c.cache, 0xFF)
			c.col = int(w[1])<<8 | int(w[2])
			if len(w) > 3 {
				c.loadPayload(w[3:])
			} else {
				c.loading = true
			}
		}

	case cmdRandomDataInput: // opcode, 2-byte col, optional payload
		if len(w) >= 3 {
			c.col = int(w[1])<<8 | int(w[2])
			if len(w) > 3 {
				c.loadPayload(w[3:])
			} else {
				c.loading = true
			}
		}

	case cmdProgramExecute: // opcode, 3-byte row
		if c.wel && len(w) >= 4 {
			c.programExecute(row(w[1:4]))
			c.wel = false
			c.status &^= srWEL
		}

	case cmdBlockErase: // opcode, 3-byte row of the block's first page
		if c.wel && len(w) >= 4 {
			c.blockErase(row(w[1:4]) / c.cfg.PagesPerBlock)
			c.wel = false
			c.status &^= srWEL
		}
	}

	return nil
}

func (c *Chip) loadPayload(p []byte) {
	if c.col < len(c.cache) {
		c.col += copy(c.cache[c.col:], p)
	}
}

func (c *Chip) pageReadToCache(addr uint32) {
	block := addr / c.cfg.PagesPerBlock
	pg := addr % c.cfg.PagesPerBlock

	fill(c.cache, 0xFF)
	if block >= c.cfg.TotalBlocks {
		return
	}
	if pages, ok := c.blocks[block]; ok && pages[pg] != nil {
		copy(c.cache, pages[pg].data)
		copy(c.cache[c.cfg.PageSize:], pages[pg].spare)
	}
}

// programExecute AND-merges the cache into the addressed page: bits may only
// clear, matching NAND program physics. Out-of-bounds targets set the
// program-fail bit and store nothing.
func (c *Chip) programExecute(addr uint32) {
	block := addr / c.cfg.PagesPerBlock
	pg := addr % c.cfg.PagesPerBlock

	c.status &^= srProgramFail | srEraseFail
	if block >= c.cfg.TotalBlocks {
		c.status |= srProgramFail
		return
	}

	p := c.touchPage(block, pg)
	for i := range p.data {
		p.data[i] &= c.cache[i]
	}
	for i := range p.spare {
		p.spare[i] &= c.cache[int(c.cfg.PageSize)+i]
	}
	c.erased[block][pg] = false
}

// blockErase resets every page in the block to all-ones and clears any fail
// bits previously recorded. Out-of-bounds blocks set the erase-fail bit.
func (c *Chip) blockErase(block uint32) {
	c.status &^= srEraseFail | srProgramFail
	if block >= c.cfg.TotalBlocks {
		c.status |= srEraseFail
		return
	}

	delete(c.blocks, block)
	delete(c.erased, block)
}

// touchPage allocates the block's page table and the page's storage on
// first use, both initialized to the erased all-ones state.
func (c *Chip) touchPage(block, pg uint32) *page {
	pages, ok := c.blocks[block]
	if !ok {
		pages = make([]*page, c.cfg.PagesPerBlock)
		c.blocks[block] = pages
		e := make([]bool, c.cfg.PagesPerBlock)
		for i := range e {
			e[i] = true
		}
		c.erased[block] = e
	}
	if pages[pg] == nil {
		pages[pg] = &page{
			data:  allOnes(int(c.cfg.PageSize)),
			spare: allOnes(int(c.cfg.SpareSize)),
		}
	}
	return pages[pg]
}

func row(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func allOnes(n int) []byte {
	b := make([]byte, n)
	fill(b, 0xFF)
	return b
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
