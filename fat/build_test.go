package fat_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/warn"
)

func TestBuildSingleFile160K(t *testing.T) {
	data := bytes.Repeat([]byte("HELLO, WORLD. "), 40) // ~560 bytes
	tree := []*fat.FileDescriptor{
		{Name: "README.TXT", Date: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Size: len(data), Data: data},
	}

	var w warn.List
	buf, vol, files, err := fat.Build(tree, 0, &w)
	if err != nil {
		t.Fatalf("Build: %v (warnings: %v)", err, w.Items())
	}
	if vol == nil {
		t.Fatal("Build returned a nil VolInfo")
	}
	if vol.NFATBits != 12 {
		t.Fatalf("NFATBits = %d, want 12 for a 160K floppy", vol.NFATBits)
	}

	var found *fat.FileInfo
	for _, f := range files {
		if f.Name == "README.TXT" {
			found = f
		}
	}
	if found == nil {
		t.Fatalf("README.TXT not found in decoded file table: %+v", files)
	}
	if found.Size != len(data) {
		t.Fatalf("decoded size = %d, want %d", found.Size, len(data))
	}
	if len(buf) == 0 {
		t.Fatal("Build returned an empty buffer")
	}
}

func TestBuildNestedDirectory(t *testing.T) {
	inner := []byte("nested file contents")
	tree := []*fat.FileDescriptor{
		{
			Name: "SUBDIR",
			Size: -1,
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Files: []*fat.FileDescriptor{
				{Name: "A.TXT", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Size: len(inner), Data: inner},
			},
		},
	}

	var w warn.List
	_, _, files, err := fat.Build(tree, 0, &w)
	if err != nil {
		t.Fatalf("Build: %v (warnings: %v)", err, w.Items())
	}

	var sawDir, sawFile bool
	for _, f := range files {
		if f.Name == "SUBDIR" && f.IsDir() {
			sawDir = true
		}
		if f.Name == "A.TXT" && f.Path == `\SUBDIR\` {
			sawFile = true
		}
	}
	if !sawDir {
		t.Errorf("SUBDIR directory entry not found in %+v", files)
	}
	if !sawFile {
		t.Errorf("A.TXT not found under \\SUBDIR\\ in %+v", files)
	}
}

func TestBuildRejectsOversizedTree(t *testing.T) {
	tree := []*fat.FileDescriptor{
		{Name: "BIG.BIN", Size: 100 * 1024 * 1024, Data: make([]byte, 0)},
	}
	var w warn.List
	_, _, _, err := fat.Build(tree, 0, &w)
	if err != fat.ErrCapacityExceeded {
		t.Fatalf("Build err = %v, want ErrCapacityExceeded", err)
	}
}

func TestBuildFixedDiskUsesMBR(t *testing.T) {
	tree := []*fat.FileDescriptor{
		{Name: "A.TXT", Size: 10, Data: []byte("0123456789")},
	}
	var w warn.List
	// 10404 KB == 20808 sectors, an exact match for the "10M-fixed" template.
	buf, vol, _, err := fat.Build(tree, 10404, &w)
	if err != nil {
		t.Fatalf("Build: %v (warnings: %v)", err, w.Items())
	}
	if buf[0x1FE] != 0x55 || buf[0x1FF] != 0xAA {
		t.Fatalf("expected MBR signature at offset 0x1FE, got %#x %#x", buf[0x1FE], buf[0x1FF])
	}
	if vol.IPartition != 0 {
		t.Fatalf("IPartition = %d, want 0 (first partition)", vol.IPartition)
	}
}
