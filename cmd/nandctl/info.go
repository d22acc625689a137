package main

import (
	"fmt"

	"github.com/cennian/spinand"
)

func idCommand() {
	dev, err := openDev("")
	if err != nil {
		fatalf("%v", err)
	}

	a := dev.Attr
	fmt.Printf("Chip:            %s\n", dev.Name())
	fmt.Printf("Page data size:  %d\n", a.PageDataSize)
	fmt.Printf("Spare size:      %d\n", a.SpareSize)
	fmt.Printf("Pages per block: %d\n", a.PagesPerBlock)
	fmt.Printf("Total blocks:    %d\n", a.TotalBlocks)
	fmt.Printf("Hardware ECC:    %v\n", a.ECCOption == spinand.ECCHardwareAuto)
}

func statusCommand() {
	dev, err := openDev("")
	if err != nil {
		fatalf("%v", err)
	}

	sr, err := dev.Status()
	if err != nil {
		fatalf("read status register failed: %v", err)
	}
	fmt.Println(sr)
}
