package diskimage_test

import (
	"testing"

	"github.com/pcediskimg/diskimage/diskimage"
	"github.com/pcediskimg/diskimage/diskjson"
)

// TestSeekCyclesDuplicateIDs feeds a crafted extended-JSON document whose
// one track carries sector ID 1 twice, the copy-protected-disk "weak bit"
// shape spec §4.7 describes, and checks that repeating the same Seek with
// the previous result cycles to the next occurrence instead of always
// returning the first.
func TestSeekCyclesDuplicateIDs(t *testing.T) {
	doc := &diskjson.Document{
		ImageInfo: diskjson.ImageInfo{Type: "CHS", Cylinders: 1, Heads: 1},
		DiskData: [][][]diskjson.SectorJSON{
			{
				{
					{C: 0, H: 0, ID: 1, Length: 4, Data: []uint32{1}},
					{C: 0, H: 0, ID: 1, Length: 4, Data: []uint32{2}},
				},
			},
		},
	}
	di, err := diskimage.FromJSON(mustMarshal(t, doc))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	first, err := di.Seek(0, 0, 1, nil)
	if err != nil {
		t.Fatalf("Seek(nil): %v", err)
	}
	second, err := di.Seek(0, 0, 1, first)
	if err != nil {
		t.Fatalf("Seek(prev=first): %v", err)
	}
	if second == first {
		t.Fatal("Seek with prev should have returned the duplicate occurrence, not the same sector")
	}
	// Cycling past the last occurrence wraps back to the first.
	third, err := di.Seek(0, 0, 1, second)
	if err != nil {
		t.Fatalf("Seek(prev=second): %v", err)
	}
	if third != first {
		t.Fatalf("Seek should wrap back to the first occurrence, got a different sector")
	}
}

func TestReformatGrowsHeadsAndSectors(t *testing.T) {
	buf := buildSample(t)
	di, err := diskimage.FromBuffer(buf, diskimage.FromBufferOptions{})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}

	if _, err := di.Seek(0, 1, 1, nil); err == nil {
		t.Fatal("expected no head 1 before Reformat")
	}

	sec, err := di.Reformat(0, 1, 1, 512)
	if err != nil {
		t.Fatalf("Reformat(head 1): %v", err)
	}
	if !sec.Writable {
		t.Fatal("Reformat should produce a writable sector")
	}

	found, err := di.Seek(0, 1, 1, nil)
	if err != nil {
		t.Fatalf("Seek after Reformat: %v", err)
	}
	if found != sec {
		t.Fatal("Seek did not find the freshly reformatted sector")
	}
}
