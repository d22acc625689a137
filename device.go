package spinand

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is an FT2232H-attached SPI NAND chip.
type Device struct {
	FTDI *ftdi.FT232H

	cs    gpio.PinIO // ADBUS4 Chip Select
	clock physic.Frequency
	conn  spi.Conn
}

var hostInitialized atomic.Bool

// OpenDevice finds an FT2232H and opens the MPSSE/SPI connection.
func OpenDevice() (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	d := &Device{
		clock: 30 * physic.MegaHertz, // [FTDI-AN_135 3.2.1 Divisors]
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	// ADBUS0 | SCK
	// ADBUS1 | MOSI
	// ADBUS2 | MISO
	// ADBUS4 | CS
	d.cs = d.FTDI.D4

	if err := d.connectSPI(); err != nil {
		return nil, err
	}
	return d, nil
}

// Identify probes the attached chip and builds the matching NAND device.
func (d *Device) Identify(cfg Config) (*Dev, error) {
	return IdentifyConfig(d.conn, d.cs, cfg)
}

// Generic skips identification and builds a generic device over the given
// geometry, for chips the driver table does not know.
func (d *Device) Generic(g Geometry, cfg Config) (*Dev, error) {
	return NewGeneric(d.conn, d.cs, g, cfg)
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("not found")
}

func (d *Device) connectSPI() (err error) {
	if d.FTDI == nil {
		return errors.New("FT2232H device not found")
	}

	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI-AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [W25N01GV|6.1] mode 0 and mode 3 are supported
	mode := spi.Mode0
	d.conn, err = port.Connect(d.clock, mode, 8)
	return err
}
