package spinand

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrTimeout reports a busy-wait that never saw the OIP bit clear.
	// Device state after a timeout is undefined; the block involved should
	// be treated as suspect by the caller's policy.
	ErrTimeout = errors.New("busy timeout")

	// ErrBadBlock reports a program or erase that physically failed. The
	// block is a retirement candidate; no retry happens at this layer.
	ErrBadBlock = errors.New("bad block")

	// ErrUncorrectable reports an ECC hard failure. The output buffers are
	// untouched: cache contents are not transferred on this path.
	ErrUncorrectable = errors.New("ecc uncorrectable")
)

// ReadResult reports the ECC outcome of a successful page read.
type ReadResult int

const (
	// ReadClean means the ECC field showed no bit errors.
	ReadClean ReadResult = iota
	// ReadCorrected means bit errors occurred and were corrected by the
	// chip. The data is valid; rewriting the page is recommended.
	ReadCorrected
)

func (r ReadResult) String() string {
	if r == ReadCorrected {
		return "corrected"
	}
	return "clean"
}

// ECCOption tells the upper engine who computes ECC.
type ECCOption int

const (
	ECCNone ECCOption = iota
	ECCHardwareAuto
)

// LayoutOption selects the spare-area layout the engine should assume.
type LayoutOption int

// LayoutStandard places the bad-block marker first, then tag, then ECC.
const LayoutStandard LayoutOption = iota

// Geometry describes the addressable shape of one chip.
type Geometry struct {
	PageDataSize  uint32
	SpareSize     uint32
	PagesPerBlock uint32
	TotalBlocks   uint32
}

func (g Geometry) validate() error {
	if g.PageDataSize == 0 || g.SpareSize == 0 || g.PagesPerBlock == 0 || g.TotalBlocks == 0 {
		return fmt.Errorf("geometry %+v: all dimensions must be positive", g)
	}
	return nil
}

// Attr is the per-device storage descriptor handed to the upper engine.
// It is created once by the selected driver and immutable thereafter.
type Attr struct {
	PageDataSize  uint32
	SpareSize     uint32
	PagesPerBlock uint32
	TotalBlocks   uint32
	ECCOption     ECCOption
	LayoutOption  LayoutOption

	// BlockStatusOffset is the bad-block marker position within the spare.
	BlockStatusOffset int

	priv *nandBus
}

// Ops is the capability table the upper engine drives the chip through.
// Slots left nil are unset and must not be called; WritePageWithLayout in
// particular is optional per vendor.
type Ops struct {
	InitFlash    func(d *Dev) error
	ReleaseFlash func(d *Dev) error

	ReadPage  func(d *Dev, block, page uint32, data, spare []byte) (ReadResult, error)
	WritePage func(d *Dev, block, page uint32, data, spare []byte) error

	// WritePageWithLayout merges tag and ECC metadata into a spare buffer
	// via the device's spare encoder before programming.
	WritePageWithLayout func(d *Dev, block, page uint32, data, ecc, tag []byte) error

	EraseBlock func(d *Dev, block uint32) error
}

// SpareEncoder merges caller-supplied tag and ECC metadata into an all-ones
// spare buffer. The upper engine supplies its own encoder; the default packs
// tag then ECC after the bad-block marker byte.
type SpareEncoder func(spare, tag, ecc []byte)

// Config adjusts protocol behavior at identification time.
type Config struct {
	// Timeout bounds every busy-wait poll loop. Default 500ms.
	Timeout time.Duration
	// PollInterval is the delay between status polls. Default 100µs.
	PollInterval time.Duration
	// MakeSpare overrides the spare-area encoder used by
	// WritePageWithLayout. Default is the standard layout.
	MakeSpare SpareEncoder
}

// Dev is one identified SPI NAND chip. All capability calls on a Dev are
// serialized by an internal lock: write-enable, program-load and
// program-execute form one atomic sequence on the bus and must not
// interleave with another operation's latch handling.
type Dev struct {
	Attr *Attr
	Ops  *Ops

	name      string
	makeSpare SpareEncoder
	mu        sync.Mutex
}

// Name returns the detected manufacturer name, or "Generic" for chips absent
// from the driver table.
func (d *Dev) Name() string { return d.name }

// Init prepares the chip for use (reset and block unlock on every known
// vendor). It is a no-op when the driver left the slot unset.
func (d *Dev) Init() error {
	if d.Ops.InitFlash == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.InitFlash(d)
}

// Release tears down vendor state, if the driver installed any.
func (d *Dev) Release() error {
	if d.Ops.ReleaseFlash == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.ReleaseFlash(d)
}

// ReadPage loads the addressed page into the chip cache, checks the ECC
// status, then transfers the requested data and spare regions. On
// ErrUncorrectable neither buffer has been written.
func (d *Dev) ReadPage(block, page uint32, data, spare []byte) (ReadResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.ReadPage(d, block, page, data, spare)
}

// WritePage programs the given data and spare regions into the addressed
// page. A failed program returns ErrBadBlock and is not retried.
func (d *Dev) WritePage(block, page uint32, data, spare []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.WritePage(d, block, page, data, spare)
}

// WritePageWithLayout programs a page with a spare area derived from the tag
// and ECC metadata. Not every vendor provides this capability.
func (d *Dev) WritePageWithLayout(block, page uint32, data, ecc, tag []byte) error {
	if d.Ops.WritePageWithLayout == nil {
		return errors.New("write with layout not supported by this driver")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.WritePageWithLayout(d, block, page, data, ecc, tag)
}

// EraseBlock erases the addressed block. A failed erase returns ErrBadBlock.
func (d *Dev) EraseBlock(block uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Ops.EraseBlock(d, block)
}

// Status reads the chip status register once.
func (d *Dev) Status() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Attr.priv.readStatus()
}

// driverDesc ties a manufacturer id to its constructor.
type driverDesc struct {
	mfrID byte
	name  string
	init  func(b *nandBus) (*Attr, *Ops)
}

// drivers is the fixed manufacturer table, scanned linearly at
// identification time. Unknown ids fall back to the generic driver.
var drivers = []driverDesc{
	{0xEF, "Winbond", initWinbond},
	{0xC8, "GigaDevice", initGigaDevice},
	{0x2C, "Micron", initMicron},
	{0x52, "Alliance", initAlliance},
	{0xBA, "Zetta", initZetta},
	{0x0B, "XTX", initXTX},
}

// Identify reads the chip id and builds the matching device with default
// configuration.
func Identify(conn spi.Conn, cs gpio.PinIO) (*Dev, error) {
	return IdentifyConfig(conn, cs, Config{})
}

// IdentifyConfig reads the 2-byte manufacturer/device id, selects the vendor
// driver and constructs the capability table. An id absent from the table
// selects the generic driver with best-effort defaults rather than failing.
func IdentifyConfig(conn spi.Conn, cs gpio.PinIO, cfg Config) (*Dev, error) {
	if conn == nil || cs == nil {
		return nil, errors.New("spinand: nil SPI connection or CS pin")
	}

	b := newBus(conn, cs, cfg)
	mfr, _, err := b.readID()
	if err != nil {
		return nil, err
	}

	d := &Dev{name: "Generic", makeSpare: cfg.MakeSpare}
	if d.makeSpare == nil {
		d.makeSpare = encodeSpareStandard
	}
	for _, drv := range drivers {
		if drv.mfrID == mfr {
			d.name = drv.name
			d.Attr, d.Ops = drv.init(b)
			return d, nil
		}
	}
	d.Attr, d.Ops = initGeneric(b)
	return d, nil
}

// NewGeneric builds a generic-driver device over caller-supplied geometry,
// for chips the table does not know. The geometry must be fully specified.
func NewGeneric(conn spi.Conn, cs gpio.PinIO, g Geometry, cfg Config) (*Dev, error) {
	if conn == nil || cs == nil {
		return nil, errors.New("spinand: nil SPI connection or CS pin")
	}
	if err := g.validate(); err != nil {
		return nil, err
	}

	b := newBus(conn, cs, cfg)
	b.setGeometry(g)

	d := &Dev{name: "Generic", makeSpare: cfg.MakeSpare}
	if d.makeSpare == nil {
		d.makeSpare = encodeSpareStandard
	}
	d.Attr, d.Ops = attrOps(b, ECCNone)
	return d, nil
}

func (b *nandBus) setGeometry(g Geometry) {
	b.pageSize = g.PageDataSize
	b.spareSize = g.SpareSize
	b.pagesPerBlock = g.PagesPerBlock
	b.totalBlocks = g.TotalBlocks
}

// attrOps assembles the descriptor and a capability table defaulting every
// slot to the generic page operations.
func attrOps(b *nandBus, ecc ECCOption) (*Attr, *Ops) {
	attr := &Attr{
		PageDataSize:      b.pageSize,
		SpareSize:         b.spareSize,
		PagesPerBlock:     b.pagesPerBlock,
		TotalBlocks:       b.totalBlocks,
		ECCOption:         ecc,
		LayoutOption:      LayoutStandard,
		BlockStatusOffset: 0, // first byte of spare is the bad-block marker
		priv:              b,
	}
	ops := &Ops{
		ReadPage:   readPageGeneric,
		WritePage:  writePageGeneric,
		EraseBlock: eraseBlockGeneric,
	}
	return attr, ops
}
