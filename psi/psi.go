// Package psi decodes the PCE Sector Image (PSI) container format: a
// chunked, CRC-32-protected stream of sector descriptors and their data
// (spec §4.3). Per the Non-goals of spec.md ("write-back to the
// originating container"), this package only reads PSI; images sourced
// from PSI are re-emitted as raw IMG or JSON, never re-encoded as PSI.
package psi

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/pcediskimg/diskimage/warn"
)

// crcTable is the reflected CRC-32 with polynomial 0x1EDC6F41 (Castagnoli),
// the polynomial PSI uses for its per-chunk trailer.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Chunk IDs recognized by the decoder.
const (
	ChunkFile  = "PSI "
	ChunkSect  = "SECT"
	ChunkData  = "DATA"
	ChunkIBMM  = "IBMM"
	ChunkOffs  = "OFFS"
	ChunkText  = "TEXT"
	ChunkEnd   = "END "
)

// Sect flag bits, per spec §4.3.
const (
	SectFlagFill      = 1 << 0
	SectFlagDataError = 1 << 2
)

// FileHeader is the decoded "PSI " chunk.
type FileHeader struct {
	FileVersion   uint16
	SectorVersion uint16
}

// Sect is one decoded SECT chunk plus whatever DATA chunk followed it.
type Sect struct {
	Cylinder    int
	Head        int
	ID          int
	Size        int
	Flags       uint8
	FillPattern uint32
	Data        []byte // fully expanded payload of length Size, nil if only a fill pattern was given
}

// HasDataError reports whether the data-error flag was set.
func (s Sect) HasDataError() bool { return s.Flags&SectFlagDataError != 0 }

// Image is the result of decoding a full PSI stream.
type Image struct {
	Header FileHeader
	Sects  []Sect
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

// readChunk reads one chunk's header, payload, and CRC trailer, validating
// the CRC. A CRC mismatch is treated as end-of-stream (spec §4.3), signaled
// by io.EOF so the caller's loop terminates without error.
func readChunk(r io.Reader) (id string, payload []byte, err error) {
	var hdr chunkHeader
	if err := binary.Read(r, binary.BigEndian, &hdr.ID); err != nil {
		if err == io.EOF {
			return "", nil, io.EOF
		}
		return "", nil, fmt.Errorf("psi: reading chunk id: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &hdr.Size); err != nil {
		return "", nil, fmt.Errorf("psi: reading chunk size: %w", err)
	}
	payload = make([]byte, hdr.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, fmt.Errorf("psi: reading %d-byte payload for chunk %q: %w", hdr.Size, hdr.ID, err)
	}
	var wantCRC uint32
	if err := binary.Read(r, binary.BigEndian, &wantCRC); err != nil {
		return "", nil, fmt.Errorf("psi: reading crc for chunk %q: %w", hdr.ID, err)
	}

	sum := crc32.New(crcTable)
	sum.Write(hdr.ID[:])
	binary.Write(sum, binary.BigEndian, hdr.Size)
	sum.Write(payload)
	if sum.Sum32() != wantCRC {
		// Treated as end-of-stream, not a hard error: spec §4.3.
		return "", nil, io.EOF
	}
	return string(hdr.ID[:]), payload, nil
}

// Decode reads a full PSI stream from r.
func Decode(r io.Reader, w *warn.List) (*Image, error) {
	img := &Image{}
	var pendingSect *Sect

	for {
		id, payload, err := readChunk(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch id {
		case ChunkFile:
			if len(payload) < 4 {
				w.Addf("psi: PSI chunk too short (%d bytes)", len(payload))
				continue
			}
			img.Header.FileVersion = binary.BigEndian.Uint16(payload[0:2])
			img.Header.SectorVersion = binary.BigEndian.Uint16(payload[2:4])

		case ChunkSect:
			if pendingSect != nil {
				img.Sects = append(img.Sects, *pendingSect)
			}
			s, err := decodeSect(payload)
			if err != nil {
				w.Addf("psi: %v", err)
				pendingSect = nil
				continue
			}
			if s.Flags&SectFlagFill != 0 {
				s.Data = fillBytes(s.FillPattern, s.Size)
			}
			pendingSect = s

		case ChunkData:
			if pendingSect == nil {
				w.Addf("psi: DATA chunk with no preceding SECT chunk")
				continue
			}
			if pendingSect.Flags&SectFlagFill != 0 && pendingSect.Data != nil {
				w.Addf("psi: sector %d:%d:%d has both a fill pattern and explicit DATA; DATA wins",
					pendingSect.Cylinder, pendingSect.Head, pendingSect.ID)
			}
			pendingSect.Data = fillToSize(payload, pendingSect.Size)

		case ChunkIBMM, ChunkOffs, ChunkText:
			// Acknowledged, ignored.

		case ChunkEnd:
			if pendingSect != nil {
				img.Sects = append(img.Sects, *pendingSect)
				pendingSect = nil
			}
			return img, nil

		default:
			w.Addf("psi: unrecognized chunk %q (%d bytes), skipping", id, len(payload))
		}
	}

	if pendingSect != nil {
		img.Sects = append(img.Sects, *pendingSect)
	}
	return img, nil
}

func decodeSect(payload []byte) (*Sect, error) {
	if len(payload) < 12 {
		return nil, fmt.Errorf("SECT chunk too short (%d bytes, want >= 12)", len(payload))
	}
	s := &Sect{
		Cylinder: int(payload[0]),
		Head:     int(payload[1]),
		ID:       int(payload[2]),
		Size:     int(binary.BigEndian.Uint16(payload[4:6])),
		Flags:    payload[6],
	}
	s.FillPattern = binary.BigEndian.Uint32(payload[8:12])
	if s.Flags&^(SectFlagFill|SectFlagDataError) != 0 {
		return s, fmt.Errorf("sector %d:%d:%d has unrecognized flag bits %#x", s.Cylinder, s.Head, s.ID, s.Flags)
	}
	return s, nil
}

// fillBytes materializes n bytes of the given 32-bit fill pattern.
func fillBytes(pattern uint32, n int) []byte {
	out := make([]byte, n)
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], pattern)
	for i := 0; i < n; i++ {
		out[i] = w[i%4]
	}
	return out
}

// fillToSize right-pads or truncates data's words to exactly n bytes,
// filling any remainder in 32-bit words per spec §4.3.
func fillToSize(data []byte, n int) []byte {
	if len(data) >= n {
		return data[:n]
	}
	out := make([]byte, n)
	copy(out, data)
	if len(data)%4 != 0 && len(data) >= 4 {
		last := binary.LittleEndian.Uint32(data[len(data)-4:])
		var w [4]byte
		binary.LittleEndian.PutUint32(w[:], last)
		for i := len(data); i < n; i++ {
			out[i] = w[(i-len(data))%4]
		}
	}
	return out
}
