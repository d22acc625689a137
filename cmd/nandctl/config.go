package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cennian/spinand"
	"gopkg.in/yaml.v3"
)

// chipConfig overrides identification for chips absent from the built-in
// driver table. Loaded from the file given with -chip.
type chipConfig struct {
	Name          string `yaml:"name"`
	PageSize      uint32 `yaml:"page_size"`
	SpareSize     uint32 `yaml:"spare_size"`
	PagesPerBlock uint32 `yaml:"pages_per_block"`
	TotalBlocks   uint32 `yaml:"total_blocks"`
}

func loadChipConfig(path string) (*chipConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg chipConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *chipConfig) validate() error {
	if c.PageSize == 0 {
		return errors.New("page_size must be positive")
	}
	if c.SpareSize == 0 {
		return errors.New("spare_size must be positive")
	}
	if c.PagesPerBlock == 0 {
		return errors.New("pages_per_block must be positive")
	}
	if c.TotalBlocks == 0 {
		return errors.New("total_blocks must be positive")
	}
	return nil
}

func (c *chipConfig) geometry() spinand.Geometry {
	return spinand.Geometry{
		PageDataSize:  c.PageSize,
		SpareSize:     c.SpareSize,
		PagesPerBlock: c.PagesPerBlock,
		TotalBlocks:   c.TotalBlocks,
	}
}

// openDev opens the FTDI-attached chip, identifying it unless a -chip file
// forces generic geometry, and runs the driver's init (reset + unlock).
func openDev(chipPath string) (*spinand.Dev, error) {
	d, err := spinand.OpenDevice()
	if err != nil {
		return nil, err
	}

	var dev *spinand.Dev
	if chipPath != "" {
		cfg, err := loadChipConfig(chipPath)
		if err != nil {
			return nil, err
		}
		dev, err = d.Generic(cfg.geometry(), spinand.Config{})
		if err != nil {
			return nil, err
		}
	} else {
		dev, err = d.Identify(spinand.Config{})
		if err != nil {
			return nil, err
		}
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("flash init failed: %w", err)
	}
	return dev, nil
}
