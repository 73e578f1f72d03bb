package sector_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pcediskimg/diskimage/sector"
)

func zeros(n int) []byte { return make([]byte, n) }

func TestBuildFromBufferCompressesTrailingRun(t *testing.T) {
	buf := zeros(512)
	// first word distinct, rest all zero
	buf[0] = 0x41
	s, err := sector.BuildFromBuffer(0, 0, 1, 512, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Data) != 2 {
		t.Fatalf("want 2 stored words (0x41, then the zero word that repeats to fill the tail), got %d: %v", len(s.Data), s.Data)
	}
	if s.Data[0] != 0x41 || s.Data[1] != 0 {
		t.Fatalf("stored words = %#x, want [0x41 0]", s.Data)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	buf := zeros(512)
	for i := range buf {
		buf[i] = byte(i)
	}
	s, err := sector.BuildFromBuffer(1, 0, 3, 512, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("round trip mismatch")
	}
	if len(s.Data) != 512/4 {
		t.Fatalf("fully incompressible sector should store all %d words, got %d", 512/4, len(s.Data))
	}
}

func TestReadOutOfRange(t *testing.T) {
	s := sector.New(0, 0, 1, 512)
	if v, err := s.Read(512); err == nil || v != -1 {
		t.Fatalf("Read(512) = %d, %v; want -1, error", v, err)
	}
}

func TestReadDataError(t *testing.T) {
	s := sector.New(0, 0, 1, 512)
	s.DataError = -1
	v, err := s.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Fatalf("Read on errored sector = %d, want -1", v)
	}
}

func TestWriteRejectsReadOnly(t *testing.T) {
	s := sector.New(0, 0, 1, 512)
	if err := s.Write(0, 1); err == nil {
		t.Fatal("Write on non-writable sector should fail")
	}
}

func TestWriteTracksModifyRange(t *testing.T) {
	s := sector.New(0, 0, 1, 512)
	s.Writable = true

	if err := s.Write(100, 0x41); err != nil {
		t.Fatal(err)
	}
	if s.IModify != 25 || s.CModify != 1 {
		t.Fatalf("after first write: IModify=%d CModify=%d, want 25,1", s.IModify, s.CModify)
	}

	if err := s.Write(50, 0x42); err != nil {
		t.Fatal(err)
	}
	if s.IModify != 12 || s.CModify != 14 {
		t.Fatalf("after second write: IModify=%d CModify=%d, want 12,14", s.IModify, s.CModify)
	}

	b, err := s.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if b[100] != 0x41 || b[50] != 0x42 {
		t.Fatalf("written bytes not reflected: b[100]=%#x b[50]=%#x", b[100], b[50])
	}
}

func TestWriteNoOpWhenByteUnchanged(t *testing.T) {
	s := sector.New(0, 0, 1, 512)
	s.Writable = true
	if err := s.Write(10, 0); err != nil {
		t.Fatal(err)
	}
	if s.CModify != 0 {
		t.Fatalf("writing the existing value should not register a modification, got CModify=%d", s.CModify)
	}
}

func TestChecksumExcludesTrailingPatternOnlyWhenCompressed(t *testing.T) {
	buf := zeros(512)
	buf[0] = 1
	compressed, err := sector.BuildFromBuffer(0, 0, 1, 512, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := compressed.Checksum(), uint32(1); got != want {
		t.Fatalf("compressed checksum = %d, want %d (first word counted, trailing repeated pattern word excluded)", got, want)
	}

	for i := range buf {
		buf[i] = byte(i)
	}
	full, err := sector.BuildFromBuffer(0, 0, 1, 512, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	var want uint32
	for _, w := range full.Data {
		want += w
	}
	if got := full.Checksum(); got != want {
		t.Fatalf("full checksum = %d, want %d (no compression, nothing excluded)", got, want)
	}
}

func TestBuildFromBufferRejectsBadLength(t *testing.T) {
	if _, err := sector.BuildFromBuffer(0, 0, 1, 511, zeros(511), 0); err == nil {
		t.Fatal("expected error for length not a multiple of 4")
	}
}

func TestSectorShape(t *testing.T) {
	s := sector.New(2, 1, 5, 512)
	want := &sector.Sector{C: 2, H: 1, ID: 5, Length: 512, Data: []uint32{0}, FileIndex: -1}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("New() mismatch (-want +got):\n%s", diff)
	}
}
