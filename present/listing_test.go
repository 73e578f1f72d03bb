package present_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/present"
)

func TestDriveLetter(t *testing.T) {
	cases := []struct {
		iPartition int
		want       string
	}{
		{-1, "A"},
		{0, "C"},
		{1, "D"},
		{2, "E"},
	}
	for _, c := range cases {
		vol := &fat.VolInfo{IPartition: c.iPartition}
		if got := present.DriveLetter(vol); got != c.want {
			t.Errorf("DriveLetter(iPartition=%d) = %q, want %q", c.iPartition, got, c.want)
		}
	}
}

func TestListProducesDirectoryBlocksAndFreeLine(t *testing.T) {
	vol := &fat.VolInfo{IPartition: -1, ClusFree: 10, ClusSecs: 2, CbSector: 512}
	files := []*fat.FileInfo{
		{Path: `\`, Name: "README.TXT", Size: 100, Date: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{Path: `\`, Name: "SUBDIR", Attr: fat.AttrSubdir, Date: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{Path: `\SUBDIR\`, Name: "A.TXT", Size: 3, Date: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
	}

	var sb strings.Builder
	if err := present.List(&sb, vol, files); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	if !strings.Contains(out, `Directory of A:\`) {
		t.Errorf("missing root directory header:\n%s", out)
	}
	if !strings.Contains(out, `Directory of A:\SUBDIR\`) {
		t.Errorf("missing subdirectory header:\n%s", out)
	}
	if !strings.Contains(out, "README.TXT") || !strings.Contains(out, "<DIR>") {
		t.Errorf("missing expected entries:\n%s", out)
	}
	if !strings.Contains(out, "free") {
		t.Errorf("missing free-space line:\n%s", out)
	}
}

func TestManifestIsFlatAndSorted(t *testing.T) {
	files := []*fat.FileInfo{
		{Path: `\`, Name: "Z.TXT", Size: 1},
		{Path: `\SUBDIR\`, Name: "A.TXT", Size: 1},
		{Path: `\`, Name: "SUBDIR", Attr: fat.AttrSubdir},
	}
	got := present.Manifest(files)
	want := []string{`SUBDIR\A.TXT`, `Z.TXT`}
	if len(got) != len(want) {
		t.Fatalf("Manifest() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Manifest()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
