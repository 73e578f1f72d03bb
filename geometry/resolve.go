// Package geometry implements the Geometry Resolver (spec §4.2): turning an
// untyped byte buffer, possibly carrying an MBR and/or BPB, into a resolved
// cylinder/head/sector grid description, repairing or synthesizing a BPB
// when required.
package geometry

import (
	"github.com/pcediskimg/diskimage/mbr"
	"github.com/pcediskimg/diskimage/warn"
)

// mbrProbeThreshold is the buffer size above which an MBR partition table
// is plausible (spec §4.2 item 1: "buffers >= ~3 MB").
const mbrProbeThreshold = 3 * 1024 * 1024

// Options control optional resolver behavior supplied by the caller.
type Options struct {
	ForceBPB  bool
	EnableXDF bool
}

// Result is the resolved geometry plus whatever BPB evidence was found or
// synthesized.
type Result struct {
	Cylinders       int
	Heads           int
	SectorsPerTrack int
	BytesPerSector  int
	MediaID         byte
	XDF             bool

	BPB              *BPB
	BPBSectorOffset  int // byte offset of the boot sector within the buffer
	BPBModified      bool
	OriginalBPBBytes []byte // captured before OEM-string overwrite or repair
	// OriginalBPBOffset is the offset, relative to BPBSectorOffset, that
	// OriginalBPBBytes was captured from (and must be restored to): OffOEM
	// for a bare OEM-string overwrite, OffBytesPerSector for a natural
	// (non-forced) repair, or 0 for a forced repair.
	OriginalBPBOffset int
	DSKHeader         *DSKHeader
}

// Resolve runs the eight-step geometry resolution algorithm of spec §4.2
// against buf, recording any warnings (geometry/physical disagreement,
// unrecognized boot sector, etc.) onto w.
func Resolve(buf []byte, opts Options, w *warn.List) (*Result, error) {
	res := &Result{}

	// 1. MBR probe.
	bootOffset := 0
	if len(buf) >= mbrProbeThreshold && mbr.HasSignature(buf) {
		entries, err := mbr.ReadTable(buf)
		if err == nil {
			if idx, e := mbr.FirstActive(entries); idx >= 0 {
				bootOffset = int(e.LBAFirst) * SectorSize
			}
		}
	}
	res.BPBSectorOffset = bootOffset

	// 2. BPB probe.
	bpb := probeBPB(buf, bootOffset)
	res.BPB = bpb

	// 3. Geometry table lookup by buffer length.
	tmpl := LookupByBufferLength(len(buf))
	if tmpl != nil {
		res.Cylinders = tmpl.Cylinders
		res.Heads = tmpl.Heads
		res.SectorsPerTrack = tmpl.SectorsPerTrack
		res.BytesPerSector = tmpl.BytesPerSector
		res.MediaID = tmpl.MediaID
	}
	if bpb != nil && bpb.HasValidJump() && bpb.TotalHeads != 0 && bpb.SectorsPerTrack != 0 {
		cyl := bpb.Cylinders()
		if tmpl != nil && (cyl != res.Cylinders || int(bpb.TotalHeads) != res.Heads || int(bpb.SectorsPerTrack) != res.SectorsPerTrack) {
			w.Addf("geometry: BPB geometry (C=%d H=%d S=%d) disagrees with table lookup (C=%d H=%d S=%d)",
				cyl, bpb.TotalHeads, bpb.SectorsPerTrack, res.Cylinders, res.Heads, res.SectorsPerTrack)
		}
		if tmpl == nil {
			res.Cylinders = cyl
			res.Heads = int(bpb.TotalHeads)
			res.SectorsPerTrack = int(bpb.SectorsPerTrack)
			res.BytesPerSector = int(bpb.BytesPerSector)
			res.MediaID = bpb.MediaID
		}
	}

	// 4. XDF detection.
	if opts.EnableXDF && bpb != nil && bpb.TotalSectors() == XDFTotalSectors {
		res.XDF = true
	}

	// 5. Default-BPB repair.
	if bpb == nil || !bpb.HasValidJump() || opts.ForceBPB {
		if repaired := repairBPB(buf, bootOffset, bpb, tmpl, opts.ForceBPB, w); repaired != nil {
			res.BPB = repaired.bpb
			res.BPBModified = true
			res.OriginalBPBBytes = repaired.original
			res.OriginalBPBOffset = repaired.capturedOffset
			res.Cylinders = repaired.result.Cylinders
			res.Heads = repaired.result.Heads
			res.SectorsPerTrack = repaired.result.SectorsPerTrack
			res.BytesPerSector = repaired.result.BytesPerSector
			res.MediaID = repaired.result.MediaID
			bpb = repaired.bpb
		}
	}

	// 6. Shrink-to-logical.
	if res.BPB != nil {
		if matched := LookupByBufferLength(len(buf)); matched != nil && matched.MediaID != res.BPB.MediaID {
			if smaller := ShrinkToLogical(matched); smaller != nil && smaller.MediaID == res.BPB.MediaID {
				w.Addf("geometry: media id %#x indicates logical format %s within physical %s; using logical sectors-per-track %d",
					res.BPB.MediaID, smaller.Name, matched.Name, smaller.SectorsPerTrack)
				res.SectorsPerTrack = smaller.SectorsPerTrack
			}
		}
	}

	// 7. Damaged-boot heuristic.
	if len(buf) >= 2 && buf[0] == 0xF6 && buf[1] == 0xF6 {
		fatSectorOffset := bootOffset + res.BytesPerSector*reservedSectorsOr1(res.BPB)
		if fatSectorOffset < len(buf) && buf[fatSectorOffset] >= 0xF8 {
			if t := LookupByMediaAndSize(buf[fatSectorOffset], len(buf)); t != nil {
				w.Addf("geometry: damaged boot sector (0xF6 0xF6); repairing from template %s", t.Name)
				res.Cylinders, res.Heads, res.SectorsPerTrack, res.BytesPerSector, res.MediaID =
					t.Cylinders, t.Heads, t.SectorsPerTrack, t.BytesPerSector, t.MediaID
			}
		}
	}

	// 8. DSK header fallback.
	if res.Heads == 0 && len(buf) >= 8 && (buf[0] == 0x00 || buf[0] == 0x01) {
		h, err := DecodeDSKHeader(buf)
		if err == nil {
			res.DSKHeader = h
			res.Cylinders = int(h.Cylinders)
			res.Heads = int(h.Heads)
			if h.SectorSize == 0 && h.SectorCount == 0 {
				if table, err := DecodeDSKTrackTable(buf, h); err == nil && len(table) > 0 {
					res.SectorsPerTrack = int(table[0].SectorCount)
					res.BytesPerSector = table[0].BytesPerSector()
				}
			} else {
				res.SectorsPerTrack = int(h.SectorCount)
				res.BytesPerSector = 128 << h.SectorSize
			}
		}
	}

	if res.Heads == 0 {
		w.Addf("geometry: could not locate boot sector or recognizable geometry for a %d-byte buffer", len(buf))
	}

	applyOEMOverwrite(res, buf, w)

	return res, nil
}

func reservedSectorsOr1(b *BPB) int {
	if b == nil || b.ReservedSectors == 0 {
		return 1
	}
	return int(b.ReservedSectors)
}

// probeBPB decodes a BPB at bootOffset if the jump byte and sector-size
// field look plausible; otherwise returns nil.
func probeBPB(buf []byte, bootOffset int) *BPB {
	if bootOffset+SectorSize > len(buf) {
		return nil
	}
	if buf[bootOffset] != 0xEB && buf[bootOffset] != 0xE9 {
		return nil
	}
	// DOS 3.31+ uses 32-bit hidden/large-sector fields; detect by whether
	// TotalSectors16 at 0x13 is zero (the DOS 3.31 convention for "use the
	// 32-bit LargeSectors field instead").
	dos331 := false
	if bootOffset+0x15 < len(buf) {
		ts16 := int(buf[bootOffset+0x13]) | int(buf[bootOffset+0x14])<<8
		dos331 = ts16 == 0
	}
	bpb, err := DecodeBPB(buf, bootOffset, dos331)
	if err != nil {
		return nil
	}
	return bpb
}

type repairedBPB struct {
	bpb            *BPB
	original       []byte
	capturedOffset int // offset, relative to bootOffset, original was captured from
	result         struct {
		Cylinders, Heads, SectorsPerTrack, BytesPerSector int
		MediaID                                           byte
	}
}

// repairBPB implements spec §4.2 item 5: search the template table for a
// BPB whose media id and size match, then rewrite the buffer's BPB region
// either from offset 0 (forced) or offset 0x0B (natural repair, preserving
// the pre-2.0 date string at 0x03..0x0A).
func repairBPB(buf []byte, bootOffset int, existing *BPB, sizeTemplate *Template, force bool, w *warn.List) *repairedBPB {
	if bootOffset+SectorSize > len(buf) {
		return nil
	}

	branchOK := len(buf) > bootOffset+1 && buf[bootOffset] == 0xEB && int(buf[bootOffset+1]) >= 0x22-2
	if !force && !branchOK {
		return nil
	}

	var tmpl *Template
	if existing != nil {
		tmpl = LookupByMediaAndSize(existing.MediaID, len(buf))
	}
	if tmpl == nil {
		tmpl = sizeTemplate
	}
	if tmpl == nil {
		tmpl = LookupByBufferLength(len(buf))
	}
	if tmpl == nil {
		w.Addf("geometry: no default BPB template matches a %d-byte buffer; leaving BPB unrepaired", len(buf))
		return nil
	}

	sector := make([]byte, SectorSize)
	copy(sector, buf[bootOffset:bootOffset+SectorSize])

	var original []byte
	var capturedOffset int
	if force {
		original = append([]byte(nil), sector[:OffLargeSectors32+4]...)
		capturedOffset = 0
		writeTemplateBPB(sector, tmpl, 0)
	} else {
		original = append([]byte(nil), sector[OffBytesPerSector:OffLargeSectors32+4]...)
		capturedOffset = OffBytesPerSector
		writeTemplateBPB(sector, tmpl, OffBytesPerSector)
	}

	copy(buf[bootOffset:bootOffset+SectorSize], sector)

	bpb, err := DecodeBPB(buf, bootOffset, true)
	if err != nil {
		return nil
	}

	rep := &repairedBPB{bpb: bpb, original: original, capturedOffset: capturedOffset}
	rep.result.Cylinders = tmpl.Cylinders
	rep.result.Heads = tmpl.Heads
	rep.result.SectorsPerTrack = tmpl.SectorsPerTrack
	rep.result.BytesPerSector = tmpl.BytesPerSector
	rep.result.MediaID = tmpl.MediaID
	return rep
}

// writeTemplateBPB writes tmpl's fields into sector starting at fromOffset.
// When fromOffset is 0, the jump code and OEM string are overwritten too;
// when fromOffset is OffBytesPerSector, bytes 0x00..0x0A (jump + OEM/date
// string) are left untouched.
func writeTemplateBPB(sector []byte, tmpl *Template, fromOffset int) {
	if fromOffset == 0 {
		sector[0] = 0xEB
		sector[1] = 0x3C
		sector[2] = 0x90
		copy(sector[OffOEM:OffOEM+8], []byte("PCJS.ORG"))
	}
	putU16(sector, OffBytesPerSector, uint16(tmpl.BytesPerSector))
	sector[OffSectorsPerClus] = byte(tmpl.SectorsPerCluster)
	putU16(sector, OffReservedSectors, 1)
	sector[OffTotalFATs] = byte(tmpl.TotalFATs)
	putU16(sector, OffRootDirEntries, uint16(tmpl.RootDirEntries))
	putU16(sector, OffTotalSectors16, uint16(tmpl.TotalSectors))
	sector[OffMediaID] = tmpl.MediaID
	putU16(sector, OffFATSectors, uint16(tmpl.FATSectors))
	putU16(sector, OffSectorsPerTrack, uint16(tmpl.SectorsPerTrack))
	putU16(sector, OffTotalHeads, uint16(tmpl.Heads))
	putU32(sector, OffHiddenSectors32, uint32(tmpl.HiddenSectors))
	putU32(sector, OffLargeSectors32, 0)
	sector[SectorSize-2] = 0x55
	sector[SectorSize-1] = 0xAA
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// oemSignature is the string the resolver stamps into a valid BPB's OEM
// field, per spec §4.2 "OEM-string overwrite".
const oemSignature = "PCJS.ORG"

func applyOEMOverwrite(res *Result, buf []byte, w *warn.List) {
	if res.BPB == nil {
		return
	}
	if res.BPBSectorOffset+SectorSize > len(buf) || !mbr.HasSignature(buf[res.BPBSectorOffset:]) {
		return
	}
	if string(res.BPB.OEM[:]) == oemSignature {
		return
	}
	if res.OriginalBPBBytes == nil {
		res.OriginalBPBBytes = append([]byte(nil), buf[res.BPBSectorOffset+OffOEM:res.BPBSectorOffset+OffOEM+8]...)
		res.OriginalBPBOffset = OffOEM
	}
	copy(buf[res.BPBSectorOffset+OffOEM:res.BPBSectorOffset+OffOEM+8], []byte(oemSignature))
	copy(res.BPB.OEM[:], []byte(oemSignature))
	res.BPBModified = true
}
