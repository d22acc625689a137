package nandsim

import (
	"bytes"
	"testing"
)

// tiny geometry keeps the raw protocol tests readable.
func tinyChip() *Chip {
	return New(Config{PageSize: 16, SpareSize: 4, PagesPerBlock: 4, TotalBlocks: 8})
}

func tx(t *testing.T, c *Chip, w []byte) {
	t.Helper()
	if err := c.Tx(w, nil); err != nil {
		t.Fatalf("Tx(% x) err=%v", w, err)
	}
}

func readStatus(t *testing.T, c *Chip) byte {
	t.Helper()
	buf := []byte{cmdGetFeature, regStatus, 0}
	if err := c.Tx(buf, buf); err != nil {
		t.Fatalf("get feature err=%v", err)
	}
	return buf[2]
}

func readPage(t *testing.T, c *Chip, row uint32, n int) []byte {
	t.Helper()
	tx(t, c, []byte{cmdPageRead, byte(row >> 16), byte(row >> 8), byte(row)})
	buf := make([]byte, 4+n)
	buf[0] = cmdReadCache
	if err := c.Tx(buf, buf); err != nil {
		t.Fatalf("read cache err=%v", err)
	}
	return buf[4:]
}

func TestReadID(t *testing.T) {
	c := New(Config{MfrID: 0xC8, DevID: 0xB1})
	buf := []byte{cmdReadID, 0, 0, 0}
	if err := c.Tx(buf, buf); err != nil {
		t.Fatalf("Tx() err=%v", err)
	}
	if buf[2] != 0xC8 || buf[3] != 0xB1 {
		t.Errorf("id = %#02x/%#02x, want 0xc8/0xb1", buf[2], buf[3])
	}
}

func TestProgramRequiresWriteEnable(t *testing.T) {
	c := tinyChip()

	// Load the cache but skip write-enable: execute must not store.
	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, bytes.Repeat([]byte{0x00}, 16)...))
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 0})

	if !c.Erased(0, 0) {
		t.Fatal("program without write-enable mutated storage")
	}
	if got := readPage(t, c, 0, 16); !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, 16)) {
		t.Fatalf("page = % x, want all-ones", got)
	}
}

func TestEraseRequiresWriteEnable(t *testing.T) {
	c := tinyChip()

	// Program page 0 properly first.
	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, bytes.Repeat([]byte{0x00}, 16)...))
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 0})
	if c.Erased(0, 0) {
		t.Fatal("program with write-enable did not store")
	}

	// Erase without write-enable must not release it.
	tx(t, c, []byte{cmdBlockErase, 0, 0, 0})
	if c.Erased(0, 0) {
		t.Fatal("erase without write-enable mutated storage")
	}
}

func TestWriteEnableLatchLifecycle(t *testing.T) {
	c := tinyChip()

	tx(t, c, []byte{cmdWriteEnable})
	if st := readStatus(t, c); st&srWEL == 0 {
		t.Fatalf("status = %#02x, want WEL set after write-enable", st)
	}

	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, 0x00))
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 0})
	if st := readStatus(t, c); st&srWEL != 0 {
		t.Fatalf("status = %#02x, want WEL cleared after program", st)
	}

	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, []byte{cmdWriteDisable})
	if st := readStatus(t, c); st&srWEL != 0 {
		t.Fatalf("status = %#02x, want WEL cleared after write-disable", st)
	}
}

// The payload may follow program-load in a separate transaction (the chip
// sits in the data-input state until it arrives).
func TestSplitSessionDataInput(t *testing.T) {
	c := tinyChip()

	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, []byte{cmdProgramLoad, 0, 4}) // no payload yet
	tx(t, c, []byte{0xAB, 0xCD})           // raw payload at column 4
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 1})

	got := readPage(t, c, 1, 8)
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xAB, 0xCD, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("page = % x, want % x", got, want)
	}
}

// Random-data-input must modify the cache without the all-ones reset that
// program-load performs.
func TestRandomDataInputPreservesCache(t *testing.T) {
	c := tinyChip()

	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, 0x11, 0x22))
	tx(t, c, append([]byte{cmdRandomDataInput, 0, 16}, 0x33, 0x44, 0x55, 0x66)) // spare columns
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 0})

	got := readPage(t, c, 0, 20) // data + spare
	if got[0] != 0x11 || got[1] != 0x22 {
		t.Errorf("data bytes = % x, random-data-input erased staged data", got[:2])
	}
	if !bytes.Equal(got[16:20], []byte{0x33, 0x44, 0x55, 0x66}) {
		t.Errorf("spare bytes = % x, want 33 44 55 66", got[16:20])
	}
}

func TestOutOfBoundsSetsFailBits(t *testing.T) {
	c := tinyChip()

	// Block 8 with 4 pages/block: row 32 is out of bounds.
	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, 0x00))
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 32})
	if st := readStatus(t, c); st&srProgramFail == 0 {
		t.Fatalf("status = %#02x, want P-FAIL after out-of-bounds program", st)
	}

	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, []byte{cmdBlockErase, 0, 0, 32})
	if st := readStatus(t, c); st&srEraseFail == 0 {
		t.Fatalf("status = %#02x, want E-FAIL after out-of-bounds erase", st)
	}

	// A successful erase clears the recorded fail bits.
	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, []byte{cmdBlockErase, 0, 0, 0})
	if st := readStatus(t, c); st&(srProgramFail|srEraseFail) != 0 {
		t.Fatalf("status = %#02x, want fail bits cleared by erase", st)
	}
}

func TestResetReleasesStorage(t *testing.T) {
	c := tinyChip()

	tx(t, c, []byte{cmdWriteEnable})
	tx(t, c, append([]byte{cmdProgramLoad, 0, 0}, 0x00))
	tx(t, c, []byte{cmdProgramExecute, 0, 0, 0})
	if c.Erased(0, 0) {
		t.Fatal("program did not store")
	}

	c.Reset()
	if !c.Erased(0, 0) {
		t.Fatal("Reset did not release programmed pages")
	}
	if got := readPage(t, c, 0, 16); !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, 16)) {
		t.Fatalf("page = % x after Reset, want all-ones", got)
	}
}

func TestBlockLockRegister(t *testing.T) {
	c := tinyChip()

	tx(t, c, []byte{cmdSetFeature, regBlockLock, 0x7C})
	buf := []byte{cmdGetFeature, regBlockLock, 0}
	if err := c.Tx(buf, buf); err != nil {
		t.Fatalf("get feature err=%v", err)
	}
	if buf[2] != 0x7C {
		t.Errorf("block-lock = %#02x, want 0x7c", buf[2])
	}
	if c.BlockLock() != 0x7C {
		t.Errorf("BlockLock() = %#02x, want 0x7c", c.BlockLock())
	}
}
