package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pcediskimg/diskimage/diskimage"
	"github.com/spf13/pflag"
)

// Package-level flag state, bound via RegisterPflags. Grounded on
// instanceflag.RegisterPflags's package-var-plus-FlagSet-binding shape:
// every flag has a plain getter, and a few (the repeatable overlay flags)
// also parse their own syntax instead of taking pflag's value as-is.
var (
	forceBPB  bool
	enableXDF bool
	targetKB  int

	sectorIDEdits    []string
	sectorErrorEdits []string
)

// RegisterPflags binds this package's flags onto fs.
func RegisterPflags(fs *pflag.FlagSet) {
	fs.BoolVar(&forceBPB, "forceBPB", false,
		"resolve geometry from the BPB even when it disagrees with the buffer's length")
	fs.BoolVar(&enableXDF, "enableXDF", false,
		"treat the buffer as an XDF (eXtended Density Format) image")
	fs.IntVar(&targetKB, "target-kb", 0,
		"constrain build's chosen template to this capacity in KiB (0 = smallest that fits)")

	fs.StringArrayVar(&sectorIDEdits, "sectorID", nil,
		"C:H:ID:NEWID, repeatable: renumber one sector's ID after loading")
	fs.StringArrayVar(&sectorErrorEdits, "sectorError", nil,
		"C:H:ID, repeatable: mark one sector as carrying a data read error")
}

// ForceBPB reports whether --forceBPB was set.
func ForceBPB() bool { return forceBPB }

// EnableXDF reports whether --enableXDF was set.
func EnableXDF() bool { return enableXDF }

// TargetKB returns the --target-kb value.
func TargetKB() int { return targetKB }

// SectorEdits parses the --sectorID/--sectorError flags collected so far
// into the overlay diskimage.FromBuffer applies after loading (spec
// §4.3's --sectorID/--sectorError caller overlays).
func SectorEdits() ([]diskimage.SectorEdit, error) {
	var edits []diskimage.SectorEdit
	for _, raw := range sectorIDEdits {
		parts := strings.Split(raw, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("--sectorID %q: want C:H:ID:NEWID", raw)
		}
		nums, err := parseInts(parts)
		if err != nil {
			return nil, fmt.Errorf("--sectorID %q: %w", raw, err)
		}
		edits = append(edits, diskimage.SectorEdit{C: nums[0], H: nums[1], ID: nums[2], NewID: nums[3]})
	}
	for _, raw := range sectorErrorEdits {
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("--sectorError %q: want C:H:ID", raw)
		}
		nums, err := parseInts(parts)
		if err != nil {
			return nil, fmt.Errorf("--sectorError %q: %w", raw, err)
		}
		edits = append(edits, diskimage.SectorEdit{C: nums[0], H: nums[1], ID: nums[2], Err: true})
	}
	return edits, nil
}

func parseInts(parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
