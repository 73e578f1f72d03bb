package psi_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/pcediskimg/diskimage/psi"
	"github.com/pcediskimg/diskimage/warn"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func writeChunk(buf *bytes.Buffer, id string, payload []byte) {
	var idb [4]byte
	copy(idb[:], id)
	buf.Write(idb[:])
	var sizeb [4]byte
	binary.BigEndian.PutUint32(sizeb[:], uint32(len(payload)))
	buf.Write(sizeb[:])
	buf.Write(payload)

	sum := crc32.New(crcTable)
	sum.Write(idb[:])
	sum.Write(sizeb[:])
	sum.Write(payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], sum.Sum32())
	buf.Write(crcb[:])
}

func sectPayload(c, h, id int, size int, flags uint8, fill uint32) []byte {
	p := make([]byte, 12)
	p[0] = byte(c)
	p[1] = byte(h)
	p[2] = byte(id)
	binary.BigEndian.PutUint16(p[4:6], uint16(size))
	p[6] = flags
	binary.BigEndian.PutUint32(p[8:12], fill)
	return p
}

func TestDecodeSectWithDataError(t *testing.T) {
	var buf bytes.Buffer
	writeChunk(&buf, psi.ChunkFile, []byte{0, 1, 0, 1})
	writeChunk(&buf, psi.ChunkSect, sectPayload(0, 0, 1, 512, psi.SectFlagDataError, 0))
	writeChunk(&buf, psi.ChunkData, bytes.Repeat([]byte{0xAA}, 512))
	writeChunk(&buf, psi.ChunkEnd, nil)

	var w warn.List
	img, err := psi.Decode(&buf, &w)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Sects) != 1 {
		t.Fatalf("got %d sects, want 1", len(img.Sects))
	}
	s := img.Sects[0]
	if !s.HasDataError() {
		t.Fatalf("expected data-error flag to be set")
	}
}

func TestDecodeFillPattern(t *testing.T) {
	var buf bytes.Buffer
	writeChunk(&buf, psi.ChunkSect, sectPayload(1, 0, 3, 8, psi.SectFlagFill, 0xDEADBEEF))
	writeChunk(&buf, psi.ChunkEnd, nil)

	var w warn.List
	img, err := psi.Decode(&buf, &w)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Sects) != 1 {
		t.Fatalf("got %d sects, want 1", len(img.Sects))
	}
	want := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0xEF, 0xBE, 0xAD, 0xDE}
	if !bytes.Equal(img.Sects[0].Data, want) {
		t.Fatalf("fill data = % x, want % x", img.Sects[0].Data, want)
	}
}

func TestDecodeCRCMismatchTreatedAsEOF(t *testing.T) {
	var buf bytes.Buffer
	writeChunk(&buf, psi.ChunkSect, sectPayload(0, 0, 1, 4, 0, 0))
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF // flip last CRC byte

	var w warn.List
	img, err := psi.Decode(bytes.NewReader(corrupted), &w)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Sects) != 0 {
		t.Fatalf("CRC-mismatched chunk should not be recorded, got %d sects", len(img.Sects))
	}
}

func TestDecodeDataWithoutSectWarns(t *testing.T) {
	var buf bytes.Buffer
	writeChunk(&buf, psi.ChunkData, []byte{1, 2, 3, 4})
	writeChunk(&buf, psi.ChunkEnd, nil)

	var w warn.List
	if _, err := psi.Decode(&buf, &w); err != nil {
		t.Fatal(err)
	}
	if w.Empty() {
		t.Fatal("expected a warning for a DATA chunk with no preceding SECT")
	}
}
