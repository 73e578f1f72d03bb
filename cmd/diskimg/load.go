package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pcediskimg/diskimage/diskimage"
	"github.com/pcediskimg/diskimage/geometry"
)

// loadImage opens path and parses it with the constructor its extension
// names: .json for the extended/legacy JSON document (spec §4.3 "From
// JSON"), .psi for a PCE Sector Image stream (spec §4.3 "From PSI"), and
// anything else as a raw sector buffer (spec §4.3 "From raw buffer").
func loadImage(path string) (*diskimage.DiskImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return diskimage.FromJSON(data)
	case ".psi":
		return diskimage.FromPSI(strings.NewReader(string(data)))
	default:
		edits, err := SectorEdits()
		if err != nil {
			return nil, err
		}
		return diskimage.FromBuffer(data, diskimage.FromBufferOptions{
			Options:     geometry.Options{ForceBPB: ForceBPB(), EnableXDF: EnableXDF()},
			SectorEdits: edits,
		})
	}
}

// buildTables loads path and runs BuildTables, the step "ls", "cat" and
// "dump" share before they look at files.
func buildTables(path string) (*diskimage.DiskImage, error) {
	di, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	if _, _, err := di.BuildTables(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return di, nil
}
