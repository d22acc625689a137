// Package spinand drives SPI NAND flash chips for a page-oriented flash file
// system: it identifies the attached chip, builds a per-vendor capability
// table over a shared command protocol, and reports status, ECC and
// bad-block conditions the way the upper engine expects them.
//
// # References:
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// SPI NAND Flash
//   - [W25N01GV]: Winbond W25N01GV 1Gbit Serial SLC NAND Flash (https://www.winbond.com/resource-files/w25n01gv%20revl%20050918%20unsecured.pdf)
//   - [GD5F1GQ4]: GigaDevice GD5F1GQ4 1Gbit SPI NAND Flash datasheet
//   - [MT29F1G01]: Micron MT29F1G01 1Gbit SPI NAND Flash datasheet
//   - [AS5F34G04SND]: Alliance Memory 4Gbit SPI NAND Flash datasheet
//   - [XT26G]: XTX XT26G series SPI NAND Flash datasheet
package spinand
