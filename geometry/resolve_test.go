package geometry_test

import (
	"testing"

	"github.com/pcediskimg/diskimage/geometry"
	"github.com/pcediskimg/diskimage/warn"
)

// build160K returns a 160K (40x1x8x512) raw buffer with a valid BPB, media
// byte 0xFE, matching spec S1.
func build160K() []byte {
	buf := make([]byte, 40*1*8*512)
	buf[0], buf[1], buf[2] = 0xEB, 0x3C, 0x90
	put16 := func(off int, v uint16) { buf[off] = byte(v); buf[off+1] = byte(v >> 8) }
	put16(geometry.OffBytesPerSector, 512)
	buf[geometry.OffSectorsPerClus] = 1
	put16(geometry.OffReservedSectors, 1)
	buf[geometry.OffTotalFATs] = 2
	put16(geometry.OffRootDirEntries, 64)
	put16(geometry.OffTotalSectors16, 320)
	buf[geometry.OffMediaID] = geometry.Media160K
	put16(geometry.OffFATSectors, 1)
	put16(geometry.OffSectorsPerTrack, 8)
	put16(geometry.OffTotalHeads, 1)
	buf[geometry.SectorSize-2] = 0x55
	buf[geometry.SectorSize-1] = 0xAA
	// first FAT sector's media byte
	buf[512] = geometry.Media160K
	return buf
}

func TestResolve160K(t *testing.T) {
	buf := build160K()
	var w warn.List
	res, err := geometry.Resolve(buf, geometry.Options{}, &w)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cylinders != 40 || res.Heads != 1 || res.SectorsPerTrack != 8 || res.BytesPerSector != 512 {
		t.Fatalf("resolved geometry = %+v, want 40/1/8/512", res)
	}
	if res.MediaID != geometry.Media160K {
		t.Fatalf("MediaID = %#x, want %#x", res.MediaID, geometry.Media160K)
	}
}

func TestResolveZeroedBPBUsesDefaultTemplate(t *testing.T) {
	buf := make([]byte, 360*1024) // 360K
	// zeroed boot sector entirely: no valid jump code.
	var w warn.List
	res, err := geometry.Resolve(buf, geometry.Options{}, &w)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cylinders != 40 || res.Heads != 2 || res.SectorsPerTrack != 9 {
		t.Fatalf("resolved geometry = %+v, want 40/2/9 (360K template)", res)
	}
}

func TestXDFDetection(t *testing.T) {
	buf := make([]byte, 3680*512)
	buf[0], buf[1], buf[2] = 0xEB, 0x3C, 0x90
	put16 := func(off int, v uint16) { buf[off] = byte(v); buf[off+1] = byte(v >> 8) }
	put16(geometry.OffBytesPerSector, 512)
	put16(geometry.OffTotalSectors16, 3680)
	put16(geometry.OffTotalHeads, 2)
	put16(geometry.OffSectorsPerTrack, 23)
	buf[geometry.SectorSize-2] = 0x55
	buf[geometry.SectorSize-1] = 0xAA

	var w warn.List
	res, err := geometry.Resolve(buf, geometry.Options{EnableXDF: true}, &w)
	if err != nil {
		t.Fatal(err)
	}
	if !res.XDF {
		t.Fatalf("expected XDF to be detected for a 3680-sector disk with EnableXDF set")
	}
}

func TestXDFTrackLayout(t *testing.T) {
	if got := geometry.XDFTrack(0, 0); len(got) != 19 {
		t.Fatalf("cylinder 0 should have 19 sectors, got %d", len(got))
	}
	head0 := geometry.XDFTrack(1, 0)
	head1 := geometry.XDFTrack(1, 1)
	if head0[0].Size != 1024 || head1[0].Size != 8192 {
		t.Fatalf("head0/head1 first-sector sizes = %d/%d, want 1024/8192", head0[0].Size, head1[0].Size)
	}
	for _, s := range head0 {
		found := false
		for _, id := range []int{2, 3, 4, 6} {
			if s.ID == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected XDF sector id %d", s.ID)
		}
	}
}
