// Package sector implements the run-length-compressible sector codec: each
// 512-byte (or other size) sector payload is stored as an array of 32-bit
// little-endian words, where a trailing run of identical words may be
// collapsed to its first occurrence. See spec §4.1.
package sector

import "fmt"

// Sector is one physical sector: its CHS address, nominal byte length, and
// compressed payload, plus optional error/CRC metadata and the write/file
// back-reference bookkeeping the engine maintains once the image is
// writable or has had its file table built.
type Sector struct {
	C, H   int
	ID     int
	Length int // nominal byte length, e.g. 512

	// Data holds len(Data) <= Length/4 little-endian 32-bit words. If
	// len(Data) < Length/4, the missing trailing words are implicitly
	// copies of Data[len(Data)-1] (run-length compression).
	Data []uint32

	// DataCRC, DataMark and HeadCRC are optional PSI/PCE metadata; nil
	// means "not recorded".
	DataCRC  *uint32
	DataMark *byte
	HeadCRC  *uint32

	// DataError is negative when the sector should return a read error
	// (simulating a damaged disk). HeadError is analogous for the
	// address-mark half of the sector.
	DataError int
	HeadError int

	Writable bool

	// IModify/CModify record the minimal contiguous range of words
	// touched by Write calls so far; valid only once at least one write
	// has occurred.
	IModify int
	CModify int

	// FileIndex is the index into the owning file table of the file this
	// sector belongs to, or -1 if file analysis has not run or the
	// sector is unattributed (e.g. FAT/directory sectors). FileOffset is
	// the byte offset of this sector within that file.
	FileIndex  int
	FileOffset int
}

// New creates an empty, zero-filled sector of the given geometry.
func New(c, h, id, length int) *Sector {
	return &Sector{
		C: c, H: h, ID: id, Length: length,
		Data:      []uint32{0},
		FileIndex: -1,
	}
}

// BuildFromBuffer reads length bytes from buf starting at offset as
// length/4 little-endian words, then truncates the trailing run of
// identical words to the shortest prefix that still reconstructs the full
// sector when decompressed.
func BuildFromBuffer(c, h, id, length int, buf []byte, offset int) (*Sector, error) {
	if length%4 != 0 {
		return nil, fmt.Errorf("sector: length %d is not a multiple of 4", length)
	}
	if offset < 0 || offset+length > len(buf) {
		return nil, fmt.Errorf("sector: range [%d:%d) out of bounds for buffer of length %d", offset, offset+length, len(buf))
	}
	nWords := length / 4
	words := make([]uint32, nWords)
	for i := 0; i < nWords; i++ {
		p := offset + i*4
		words[i] = uint32(buf[p]) | uint32(buf[p+1])<<8 | uint32(buf[p+2])<<16 | uint32(buf[p+3])<<24
	}
	stored := nWords
	for stored > 1 && words[stored-1] == words[stored-2] {
		stored--
	}
	return &Sector{
		C: c, H: h, ID: id, Length: length,
		Data:      append([]uint32(nil), words[:stored]...),
		FileIndex: -1,
	}, nil
}

// lastWord returns the word that repeats to fill the uncompressed tail, and
// an error if Data is empty for a non-zero-length sector.
func (s *Sector) lastWord() (uint32, error) {
	if len(s.Data) == 0 {
		if s.Length == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("sector %d:%d:%d: empty data for non-zero length %d", s.C, s.H, s.ID, s.Length)
	}
	return s.Data[len(s.Data)-1], nil
}

// wordAt returns the (possibly implicit, repeat-pattern-filled) word at
// word index idx.
func (s *Sector) wordAt(idx int) (uint32, error) {
	if idx < len(s.Data) {
		return s.Data[idx], nil
	}
	return s.lastWord()
}

// Bytes returns the fully decompressed Length-byte payload.
func (s *Sector) Bytes() ([]byte, error) {
	out := make([]byte, s.Length)
	nWords := s.Length / 4
	for i := 0; i < nWords; i++ {
		w, err := s.wordAt(i)
		if err != nil {
			return nil, err
		}
		p := i * 4
		out[p] = byte(w)
		out[p+1] = byte(w >> 8)
		out[p+2] = byte(w >> 16)
		out[p+3] = byte(w >> 24)
	}
	return out, nil
}

// Read returns the byte at byteIndex, or -1 if byteIndex is out of range or
// the sector is flagged with a data error.
func (s *Sector) Read(byteIndex int) (int, error) {
	if byteIndex < 0 || byteIndex >= s.Length {
		return -1, fmt.Errorf("sector %d:%d:%d: byte index %d out of range [0,%d)", s.C, s.H, s.ID, byteIndex, s.Length)
	}
	if s.DataError < 0 {
		return -1, nil
	}
	w, err := s.wordAt(byteIndex / 4)
	if err != nil {
		return -1, err
	}
	shift := uint((byteIndex % 4) * 8)
	return int(byte(w >> shift)), nil
}

// Write stores value at byteIndex, expanding the compressed representation
// as needed and extending the modified-word range (IModify, CModify). It
// fails if the sector is not writable.
func (s *Sector) Write(byteIndex int, value byte) error {
	if !s.Writable {
		return fmt.Errorf("sector %d:%d:%d: not writable", s.C, s.H, s.ID)
	}
	if byteIndex < 0 || byteIndex >= s.Length {
		return fmt.Errorf("sector %d:%d:%d: byte index %d out of range [0,%d)", s.C, s.H, s.ID, byteIndex, s.Length)
	}
	wordIdx := byteIndex / 4
	shift := uint((byteIndex % 4) * 8)

	cur, err := s.wordAt(wordIdx)
	if err != nil {
		return err
	}
	curByte := byte(cur >> shift)
	if curByte == value {
		return nil
	}

	// Expand Data up to and including wordIdx, filling newly materialized
	// words with the current repeat pattern.
	if wordIdx >= len(s.Data) {
		fill, err := s.lastWord()
		if err != nil {
			return err
		}
		for len(s.Data) <= wordIdx {
			s.Data = append(s.Data, fill)
		}
	}

	mask := uint32(0xFF) << shift
	s.Data[wordIdx] = (s.Data[wordIdx] &^ mask) | (uint32(value) << shift)

	if s.CModify == 0 {
		s.IModify = wordIdx
		s.CModify = 1
	} else {
		lo := s.IModify
		hi := s.IModify + s.CModify - 1
		if wordIdx < lo {
			lo = wordIdx
		}
		if wordIdx > hi {
			hi = wordIdx
		}
		s.IModify = lo
		s.CModify = hi - lo + 1
	}
	return nil
}

// cdw returns the count of data words that participate in the checksum:
// all stored words when the sector is fully stored (not compressed), or
// one fewer than stored when it is compressed (excluding the final
// repeated pattern word). This asymmetry is intentional, see spec §4.1 and
// Design Notes; it is retained for compatibility with legacy images.
func (s *Sector) cdw() int {
	full := s.Length / 4
	if len(s.Data) < full {
		return len(s.Data) - 1
	}
	return len(s.Data)
}

// Checksum accumulates this sector's contribution to the image-wide 32-bit
// two's-complement checksum.
func (s *Sector) Checksum() uint32 {
	var sum uint32
	n := s.cdw()
	for i := 0; i < n && i < len(s.Data); i++ {
		sum += s.Data[i]
	}
	return sum
}

// ChecksumAll sums Checksum() across every sector, in grid order.
func ChecksumAll(sectors []*Sector) uint32 {
	var sum uint32
	for _, s := range sectors {
		sum += s.Checksum()
	}
	return sum
}
