package geometry

import "github.com/pcediskimg/diskimage/bytesview"

// BPB field byte offsets within the boot sector, per spec §6.
const (
	OffJump            = 0x000
	OffOEM             = 0x003
	OffBytesPerSector  = 0x00B
	OffSectorsPerClus  = 0x00D
	OffReservedSectors = 0x00E
	OffTotalFATs       = 0x010
	OffRootDirEntries  = 0x011
	OffTotalSectors16  = 0x013
	OffMediaID         = 0x015
	OffFATSectors      = 0x016
	OffSectorsPerTrack = 0x018
	OffTotalHeads      = 0x01A
	OffHiddenSectors16 = 0x01C // DOS 2.0
	OffHiddenSectors32 = 0x01C // DOS 3.31+, widened in place
	OffLargeSectors32  = 0x020 // DOS 3.31+

	BootSignatureOffset = 0x1FE
	BootSignatureLo     = 0x55
	BootSignatureHi     = 0xAA

	SectorSize = 512
)

// BPB is the BIOS Parameter Block decoded from a boot sector.
type BPB struct {
	JumpCode          [3]byte
	OEM               [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	TotalFATs         uint8
	RootDirEntries    uint16
	TotalSectors16    uint16
	MediaID           byte
	FATSectors        uint16
	SectorsPerTrack   uint16
	TotalHeads        uint16
	HiddenSectors     uint32 // widened regardless of source width
	LargeSectors      uint32
	DOS331OrNewer     bool // whether HiddenSectors/LargeSectors were 32-bit on disk
}

// TotalSectors returns TotalSectors16 if non-zero, else LargeSectors.
func (b *BPB) TotalSectors() uint32 {
	if b.TotalSectors16 != 0 {
		return uint32(b.TotalSectors16)
	}
	return b.LargeSectors
}

// HasValidJump reports whether the jump-code byte is a short (0xEB) or near
// (0xE9) x86 jump, the signal the boot sector actually carries code/a BPB as
// opposed to being part of a non-bootable or pre-BPB disk.
func (b *BPB) HasValidJump() bool {
	return b.JumpCode[0] == 0xEB || b.JumpCode[0] == 0xE9
}

// DecodeBPB reads a BPB from the boot sector starting at byte offset
// sectorOffset within buf. DOS331OrNewer controls whether HiddenSectors is
// read as the 32-bit DOS 3.31 field or the narrower DOS 2.0 field at the
// same offset.
func DecodeBPB(buf []byte, sectorOffset int, dos331 bool) (*BPB, error) {
	v, err := bytesview.New(buf).Slice(sectorOffset, SectorSize)
	if err != nil {
		return nil, err
	}
	b := &BPB{DOS331OrNewer: dos331}
	copy(b.JumpCode[:], mustBytes(v, OffJump, 3))
	copy(b.OEM[:], mustBytes(v, OffOEM, 8))

	bps, _ := v.Uint16LE(OffBytesPerSector)
	b.BytesPerSector = bps
	spc, _ := v.Byte(OffSectorsPerClus)
	b.SectorsPerCluster = spc
	rsvd, _ := v.Uint16LE(OffReservedSectors)
	b.ReservedSectors = rsvd
	fats, _ := v.Byte(OffTotalFATs)
	b.TotalFATs = fats
	rde, _ := v.Uint16LE(OffRootDirEntries)
	b.RootDirEntries = rde
	ts16, _ := v.Uint16LE(OffTotalSectors16)
	b.TotalSectors16 = ts16
	mid, _ := v.Byte(OffMediaID)
	b.MediaID = mid
	fsec, _ := v.Uint16LE(OffFATSectors)
	b.FATSectors = fsec
	spt, _ := v.Uint16LE(OffSectorsPerTrack)
	b.SectorsPerTrack = spt
	heads, _ := v.Uint16LE(OffTotalHeads)
	b.TotalHeads = heads

	if dos331 {
		hs, _ := v.Uint32LE(OffHiddenSectors32)
		b.HiddenSectors = hs
		ls, _ := v.Uint32LE(OffLargeSectors32)
		b.LargeSectors = ls
	} else {
		hs, _ := v.Uint16LE(OffHiddenSectors16)
		b.HiddenSectors = uint32(hs)
	}
	return b, nil
}

func mustBytes(v *bytesview.View, offset, n int) []byte {
	s, err := v.Slice(offset, n)
	if err != nil {
		return make([]byte, n)
	}
	return s.Bytes()
}

// Cylinders derives the cylinder count from hidden+total sectors divided by
// heads*sectorsPerTrack, per spec §4.2 item 2.
func (b *BPB) Cylinders() int {
	if b.TotalHeads == 0 || b.SectorsPerTrack == 0 {
		return 0
	}
	total := uint64(b.HiddenSectors) + uint64(b.TotalSectors())
	perCyl := uint64(b.TotalHeads) * uint64(b.SectorsPerTrack)
	if perCyl == 0 {
		return 0
	}
	return int(total / perCyl)
}
