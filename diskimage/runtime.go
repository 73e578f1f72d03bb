package diskimage

import (
	"fmt"

	"github.com/pcediskimg/diskimage/sector"
)

// Seek finds the sector (c, h, id) by linear scan of the track, since
// sectors are not numerically sorted and copy-protected disks may repeat
// an ID within one track (spec §4.7). prev, when non-nil, must be a
// sector previously returned by Seek for the same (c, h, id): the scan
// then resumes just past prev's position instead of restarting from the
// front, so a caller issuing the same request twice in a row cycles
// through duplicate-ID occurrences (the "weak bit" sequence a
// copy-protection scheme depends on) rather than always landing on the
// first one.
func (di *DiskImage) Seek(c, h, id int, prev *sector.Sector) (*sector.Sector, error) {
	track := di.track(c, h)
	if track == nil {
		return nil, fmt.Errorf("diskimage: no track at cylinder %d head %d", c, h)
	}

	start := 0
	if prev != nil {
		for i, s := range track {
			if s == prev {
				start = i + 1
				break
			}
		}
	}

	n := len(track)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if track[idx].ID == id {
			return track[idx], nil
		}
	}
	return nil, fmt.Errorf("diskimage: sector %d:%d:%d not found", c, h, id)
}

func (di *DiskImage) track(c, h int) []*sector.Sector {
	if c < 0 || c >= len(di.grid) || h < 0 || h >= len(di.grid[c]) {
		return nil
	}
	return di.grid[c][h]
}

// Read returns the byte at byteIndex within sector (c, h, id).
func (di *DiskImage) Read(c, h, id, byteIndex int) (int, error) {
	sec, err := di.Seek(c, h, id, nil)
	if err != nil {
		return -1, err
	}
	return sec.Read(byteIndex)
}

// Write stores value at byteIndex within sector (c, h, id). The sector
// must have been marked Writable by the caller beforehand.
func (di *DiskImage) Write(c, h, id, byteIndex int, value byte) error {
	sec, err := di.Seek(c, h, id, nil)
	if err != nil {
		return err
	}
	return sec.Write(byteIndex, value)
}

// Reformat is the explicit capability spec.md's Design Notes call for in
// place of seek's implicit dynamic-geometry-expansion side effect (§9
// "Dynamic geometry expansion in seek is a compatibility wart"): a drive
// collaborator that is formatting a track calls Reformat when it is about
// to write a sector ID the current grid does not yet hold, rather than
// Seek silently growing the grid as a side effect of a lookup.
//
// Reformat synthesizes a blank, writable sector of cbSector bytes at
// (c, h, id), growing the head count (when h names a not-yet-present
// side) or appending to the track (when id names a not-yet-present
// sector) as needed, and returns it.
func (di *DiskImage) Reformat(c, h, id, cbSector int) (*sector.Sector, error) {
	if c < 0 || c >= len(di.grid) {
		return nil, fmt.Errorf("diskimage: cylinder %d out of range", c)
	}
	if h >= di.nHead {
		di.growHeads(h + 1)
	}
	if h < 0 || h >= len(di.grid[c]) {
		return nil, fmt.Errorf("diskimage: head %d out of range", h)
	}

	for _, s := range di.grid[c][h] {
		if s.ID == id {
			return s, nil
		}
	}

	sec := sector.New(c, h, id, cbSector)
	sec.Writable = true
	di.grid[c][h] = append(di.grid[c][h], sec)
	di.flat = append(di.flat, sec)
	return sec, nil
}

// growHeads extends every cylinder's row to hold n heads (synthesizing
// empty tracks for the new sides) and bumps nHead, per spec §4.7's
// "formatting a second side of a previously single-sided disk."
func (di *DiskImage) growHeads(n int) {
	if n <= di.nHead {
		return
	}
	for c := range di.grid {
		for len(di.grid[c]) < n {
			di.grid[c] = append(di.grid[c], nil)
		}
	}
	di.nHead = n
}
