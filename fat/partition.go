package fat

import (
	"github.com/pcediskimg/diskimage/geometry"
	"github.com/pcediskimg/diskimage/mbr"
	"github.com/pcediskimg/diskimage/warn"
)

// partRef is one FAT12/FAT16 partition found while walking the MBR and any
// EXTENDED partition chain (spec §4.4).
type partRef struct {
	LBAStart int
	LBATotal int
	Type     uint8
}

const partitionCircuitBreaker = 48
const maxEntriesPerPhase = 4

// enumeratePartitions walks buf's MBR (primary partitions, phase 0) and,
// for the first EXTENDED (type 0x05) entry found, the logical-drive chain
// rooted there (phase 1), per spec §4.4's two-phase scan. A circuit
// breaker caps total entries examined at 48 across both phases; within a
// single table, more than four entries terminates that phase.
func enumeratePartitions(buf []byte, w *warn.List) []partRef {
	if !mbr.HasSignature(buf) {
		return nil
	}

	var out []partRef
	iterations := 0

	entries, err := mbr.ReadTable(buf)
	if err != nil {
		return nil
	}

	var lbaExtended = -1 // first extended partition's own LBA, absolute
	var extendedEntry *mbr.Entry

	// Phase 0: primary partitions.
	for i := 0; i < len(entries) && i < maxEntriesPerPhase; i++ {
		iterations++
		if iterations > partitionCircuitBreaker {
			return out
		}
		e := entries[i]
		if e.Empty() {
			continue
		}
		switch e.Type {
		case mbr.TypeFAT12, mbr.TypeFAT16:
			out = append(out, partRef{LBAStart: int(e.LBAFirst), LBATotal: int(e.LBATotal), Type: e.Type})
		case mbr.TypeExtended:
			if extendedEntry == nil {
				ec := e
				extendedEntry = &ec
				lbaExtended = int(e.LBAFirst)
			}
		}
	}

	if extendedEntry == nil {
		return out
	}

	// Phase 1: follow the EXTENDED chain. Each EBR's own table has (by
	// convention) one entry describing the logical partition relative to
	// the EBR's own sector, and optionally a second entry of type
	// EXTENDED pointing to the next EBR, relative to lbaExtended.
	lbaPrimary := lbaExtended
	for iterations < partitionCircuitBreaker {
		entriesThisPhase := 0
		offset := lbaPrimary * geometry.SectorSize
		if offset+geometry.SectorSize > len(buf) {
			w.Addf("fat: EXTENDED partition chain points past end of buffer at LBA %d", lbaPrimary)
			break
		}
		ebrEntries, err := mbr.ReadTable(buf[offset:])
		if err != nil {
			break
		}

		var next *mbr.Entry
		for i := 0; i < len(ebrEntries) && i < maxEntriesPerPhase; i++ {
			iterations++
			entriesThisPhase++
			if iterations > partitionCircuitBreaker || entriesThisPhase > maxEntriesPerPhase {
				break
			}
			e := ebrEntries[i]
			if e.Empty() {
				continue
			}
			switch e.Type {
			case mbr.TypeFAT12, mbr.TypeFAT16:
				out = append(out, partRef{
					LBAStart: lbaPrimary + int(e.LBAFirst),
					LBATotal: int(e.LBATotal),
					Type:     e.Type,
				})
			case mbr.TypeExtended:
				if next == nil {
					nc := e
					next = &nc
				}
			}
		}
		if next == nil {
			break
		}
		lbaPrimary = lbaExtended + int(next.LBAFirst)
	}

	return out
}
