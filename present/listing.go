// Package present implements the disk image's output surfaces (spec §4.6):
// a DOS-style directory listing, JSON export of the decoded volume/file
// tables, and a flat whole-volume file manifest.
package present

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/humanize"
)

// DriveLetter returns the conventional drive letter for vol: "A" for an
// unpartitioned volume, "C"+iPartition for a partitioned one.
func DriveLetter(vol *fat.VolInfo) string {
	if vol.IPartition < 0 {
		return "A"
	}
	return string(rune('C' + vol.IPartition))
}

// dirGroup is one directory's worth of entries, in first-seen order.
type dirGroup struct {
	path    string
	entries []*fat.FileInfo
}

// groupByDirectory buckets files by their Path, preserving the order
// directories were first encountered (decode's depth-first walk already
// yields entries grouped contiguously by directory).
func groupByDirectory(files []*fat.FileInfo) []dirGroup {
	index := map[string]int{}
	var groups []dirGroup
	for _, f := range files {
		if f.Attr&fat.AttrVolume != 0 {
			continue
		}
		i, ok := index[f.Path]
		if !ok {
			i = len(groups)
			index[f.Path] = i
			groups = append(groups, dirGroup{path: f.Path})
		}
		groups[i].entries = append(groups[i].entries, f)
	}
	return groups
}

// List writes a DOS-style `dir /s`-like listing of vol's file tree to w, per
// spec §4.6: one block per directory, a per-directory file count/byte total,
// a volume-wide total, and a free-space line.
func List(w io.Writer, vol *fat.VolInfo, files []*fat.FileInfo) error {
	drive := DriveLetter(vol)
	groups := groupByDirectory(files)

	var volFiles, volBytes int
	for _, g := range groups {
		fmt.Fprintf(w, "Directory of %s:%s\n\n", drive, g.path)

		nFiles, nBytes := 0, 0
		for _, f := range g.entries {
			sizeCol := "<DIR>"
			if !f.IsDir() {
				sizeCol = fmt.Sprintf("%d", f.Size)
				nFiles++
				nBytes += f.Size
			}
			fmt.Fprintf(w, "%-12s %10s  %s\n", f.Name, sizeCol, f.Date.Format("01-02-06  3:04p"))
		}
		fmt.Fprintf(w, "\n%8d file(s) %12d bytes\n\n", nFiles, nBytes)
		volFiles += nFiles
		volBytes += nBytes
	}

	fmt.Fprintf(w, "Total: %d file(s) %d bytes\n", volFiles, volBytes)
	free := vol.ClusFree * vol.ClusSecs * vol.CbSector
	fmt.Fprintf(w, "%s free\n", humanize.Bytes(uint64(free)))
	return nil
}

// Manifest returns a flat, whole-volume listing of every file (not
// directory) below the volume's root, one path per entry relative to the
// root (no leading backslash), sorted for stable output. This supplements spec §4.6's per-directory listing with a single
// flat view useful for scripting (e.g. diffing two images' contents).
func Manifest(files []*fat.FileInfo) []string {
	var out []string
	for _, f := range files {
		if f.IsDir() || f.Attr&fat.AttrVolume != 0 {
			continue
		}
		out = append(out, strings.TrimPrefix(f.Path, `\`)+f.Name)
	}
	sort.Strings(out)
	return out
}
