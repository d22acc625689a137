package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/cennian/spinand"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		block     uint
		page      uint
		withSpare bool
		chipFile  string
		outFile   string
	)
	fs.UintVar(&block, "b", 0, "block number")
	fs.UintVar(&page, "p", 0, "page number within the block")
	fs.BoolVar(&withSpare, "s", false, "also dump the spare region")
	fs.StringVar(&chipFile, "chip", "", "chip geometry override file (YAML)")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	dev, err := openDev(chipFile)
	if err != nil {
		fatalf("%v", err)
	}

	data := make([]byte, dev.Attr.PageDataSize)
	var spare []byte
	if withSpare {
		spare = make([]byte, dev.Attr.SpareSize)
	}

	res, err := dev.ReadPage(uint32(block), uint32(page), data, spare)
	if err != nil {
		if errors.Is(err, spinand.ErrUncorrectable) {
			fatalf("blk %d pg %d: %v", block, page, err)
		}
		fatalf("read flash failed: %v", err)
	}
	if res == spinand.ReadCorrected {
		fmt.Fprintf(os.Stderr, "blk %d pg %d: bit errors corrected, rewrite recommended\n", block, page)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, data, 0644); err != nil {
			fatalf("write file failed: %v", err)
		}
		return
	}
	fmt.Println(hex.Dump(data))
	if withSpare {
		fmt.Println("spare:")
		fmt.Println(hex.Dump(spare))
	}
}
