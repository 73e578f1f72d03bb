package geometry

import "fmt"

// DSKHeader is the private 8-byte DSK header used as a last-resort
// geometry source (spec §4.2 item 8) when no MBR or BPB could be found.
type DSKHeader struct {
	Type        byte // 0x00 or 0x01
	Cylinders   byte
	Heads       byte
	SectorSize  byte // 0 => per-track sizes come from the track table
	SectorCount byte // 0 => per-track counts come from the track table
	Reserved    [3]byte
}

// DSKTrackEntry is one entry of the optional per-track table that follows
// the header when SectorCount and SectorSize are both zero.
type DSKTrackEntry struct {
	SectorCount byte
	SectorSize  byte // encoded as 128 << SectorSize bytes
}

// DecodeDSKHeader reads the 8-byte header from the start of buf. It does
// not validate Type beyond what the caller has already checked (byte 0 is
// 0x00 or 0x01).
func DecodeDSKHeader(buf []byte) (*DSKHeader, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("geometry: buffer too short for DSK header")
	}
	h := &DSKHeader{
		Type:        buf[0],
		Cylinders:   buf[1],
		Heads:       buf[2],
		SectorSize:  buf[3],
		SectorCount: buf[4],
	}
	copy(h.Reserved[:], buf[5:8])
	return h, nil
}

// DecodeDSKTrackTable reads one entry per track (Cylinders*Heads of them)
// starting at byte offset 8, used when the header's SectorSize and
// SectorCount are both zero.
func DecodeDSKTrackTable(buf []byte, h *DSKHeader) ([]DSKTrackEntry, error) {
	n := int(h.Cylinders) * int(h.Heads)
	if len(buf) < 8+n*2 {
		return nil, fmt.Errorf("geometry: buffer too short for DSK track table of %d tracks", n)
	}
	out := make([]DSKTrackEntry, n)
	for i := 0; i < n; i++ {
		out[i] = DSKTrackEntry{
			SectorCount: buf[8+i*2],
			SectorSize:  buf[8+i*2+1],
		}
	}
	return out, nil
}

// BytesPerSector decodes the size-code convention 128 << N.
func (e DSKTrackEntry) BytesPerSector() int {
	return 128 << e.SectorSize
}
