package present_test

import (
	"testing"
	"time"

	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/present"
	"github.com/pcediskimg/diskimage/sector"
)

func TestToFileTableSkipsVolumeLabels(t *testing.T) {
	files := []*fat.FileInfo{
		{Path: `\`, Name: "MYDISK", Attr: fat.AttrVolume},
		{Path: `\`, Name: "A.TXT", Size: 5},
	}
	table := present.ToFileTable(files)
	if len(table) != 1 || table[0].Name != "A.TXT" {
		t.Fatalf("ToFileTable() = %+v, want just A.TXT", table)
	}
}

func TestToFileInfoJSONRoundTripsDate(t *testing.T) {
	when := time.Date(2022, 6, 15, 14, 30, 0, 0, time.UTC)
	f := &fat.FileInfo{Path: `\`, Name: "X.TXT", Date: when, Size: 1}
	j := present.ToFileInfoJSON(f)
	back := fat.UnpackTimeDate(j.Date)
	if back.Year() != 2022 || back.Month() != 6 || back.Day() != 15 || back.Hour() != 14 || back.Minute() != 30 {
		t.Fatalf("UnpackTimeDate(%d) = %v, want ~%v", j.Date, back, when)
	}
}

func TestBuildDiskDataGroupsByCylinderThenHead(t *testing.T) {
	s1, _ := sector.BuildFromBuffer(0, 0, 1, 512, make([]byte, 512), 0)
	s2, _ := sector.BuildFromBuffer(0, 1, 1, 512, make([]byte, 512), 0)
	s3, _ := sector.BuildFromBuffer(1, 0, 1, 512, make([]byte, 512), 0)

	dd := present.BuildDiskData([]*sector.Sector{s1, s2, s3})
	if len(dd) != 2 {
		t.Fatalf("len(diskData) = %d, want 2 cylinders", len(dd))
	}
	if len(dd[0]) != 2 {
		t.Fatalf("len(diskData[0]) = %d, want 2 heads", len(dd[0]))
	}
	if len(dd[1]) != 1 {
		t.Fatalf("len(diskData[1]) = %d, want 1 head", len(dd[1]))
	}
}
