package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cennian/spinand"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		block    uint
		page     uint
		chipFile string
		inFile   string
	)
	fs.UintVar(&block, "b", 0, "block number")
	fs.UintVar(&page, "p", 0, "page number within the block")
	fs.StringVar(&chipFile, "chip", "", "chip geometry override file (YAML)")
	fs.StringVar(&inFile, "i", "", "input file (at most one page of data)")
	fs.Parse(args)

	if inFile == "" {
		fatalf("write: -i input file is required")
	}
	data, err := os.ReadFile(inFile)
	if err != nil {
		fatalf("%v", err)
	}

	dev, err := openDev(chipFile)
	if err != nil {
		fatalf("%v", err)
	}
	if len(data) > int(dev.Attr.PageDataSize) {
		fatalf("input is %d bytes, page holds %d", len(data), dev.Attr.PageDataSize)
	}

	if err := dev.WritePage(uint32(block), uint32(page), data, nil); err != nil {
		if errors.Is(err, spinand.ErrBadBlock) {
			fatalf("blk %d should be retired: %v", block, err)
		}
		fatalf("write flash failed: %v", err)
	}
	fmt.Printf("wrote %d bytes to blk %d pg %d\n", len(data), block, page)
}

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		block    uint
		chipFile string
	)
	fs.UintVar(&block, "b", 0, "block number")
	fs.StringVar(&chipFile, "chip", "", "chip geometry override file (YAML)")
	fs.Parse(args)

	dev, err := openDev(chipFile)
	if err != nil {
		fatalf("%v", err)
	}

	if err := dev.EraseBlock(uint32(block)); err != nil {
		if errors.Is(err, spinand.ErrBadBlock) {
			fatalf("blk %d should be retired: %v", block, err)
		}
		fatalf("erase flash failed: %v", err)
	}
	fmt.Printf("erased blk %d\n", block)
}
