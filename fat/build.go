package fat

import (
	"fmt"
	"time"

	"github.com/pcediskimg/diskimage/geometry"
	"github.com/pcediskimg/diskimage/mbr"
	"github.com/pcediskimg/diskimage/warn"
)

// FileDescriptor is one node of the host-side file tree handed to Build.
// Directories recurse via Files and carry Size < 0, per spec §4.5.
type FileDescriptor struct {
	Name  string
	Attr  byte
	Date  time.Time
	Size  int // < 0 for directories
	Data  []byte
	Files []*FileDescriptor

	startCluster int
	nClusters    int
}

func (f *FileDescriptor) isDir() bool { return f.Size < 0 }

// ErrCapacityExceeded is returned by Build when no BPB template's data area
// is large enough to hold the requested file tree.
var ErrCapacityExceeded = fmt.Errorf("fat: no BPB template large enough for the requested file tree")

// Build synthesizes a fresh bootable FAT12/FAT16 volume from tree, selecting
// the smallest BPB template whose data area fits the tree's contents
// (optionally constrained to targetKB, per spec §4.5 step 2), and returns the
// finished buffer alongside the VolInfo/FileInfo set obtained by re-decoding
// it (step 10: "finalize by re-parsing... to validate"). The returned VolInfo
// is the first volume Decode found: volume 0 on a floppy, the partition's
// volume on a partitioned fixed-disk image.
func Build(tree []*FileDescriptor, targetKB int, w *warn.List) ([]byte, *VolInfo, []*FileInfo, error) {
	tmpl, err := selectTemplate(tree, targetKB)
	if err != nil {
		return nil, nil, nil, err
	}

	cbSector := tmpl.BytesPerSector
	cbCluster := tmpl.SectorsPerCluster * cbSector
	rootDirSectors := (tmpl.RootDirEntries*dirEntrySize + cbSector - 1) / cbSector

	// The reserved first-cylinder band (spec §4.5 step 3) applies only to
	// partitioned (fixed-disk) images; unpartitioned floppies start their
	// boot sector at LBA 0.
	bandSectors := tmpl.HiddenSectors
	if tmpl.HiddenSectors > 0 {
		bandSectors += tmpl.Heads * tmpl.SectorsPerTrack
	}
	bufLen := bandSectors*cbSector + tmpl.TotalSectors*cbSector
	buf := make([]byte, bufLen)

	volStart := bandSectors // LBA, in sectors, where the volume's own boot sector begins

	if tmpl.HiddenSectors > 0 {
		// spec §4.5 step 4 names LBA-first = 1; we instead use the actual
		// band size so the partition entry points at where the volume's
		// own boot sector really lands (bandSectors, per step 3's buffer
		// layout), keeping the step-10 self-decode round trip consistent.
		mbrSector, err := mbr.BuildSingle(mbr.TypeFAT12, uint32(bandSectors), uint32(tmpl.TotalSectors), tmpl.Heads, tmpl.SectorsPerTrack)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fat: building MBR: %w", err)
		}
		for i := 0; i < tmpl.HiddenSectors; i++ {
			copy(buf[i*cbSector:(i+1)*cbSector], mbrSector)
		}
	}

	writeBootSector(buf, volStart*cbSector, tmpl)

	vbaFAT := volStart + 1
	vbaRoot := vbaFAT + tmpl.TotalFATs*tmpl.FATSectors
	vbaData := vbaRoot + rootDirSectors
	clusTotal := (tmpl.TotalSectors - (vbaData - volStart)) / tmpl.SectorsPerCluster
	nFATBits := clusTotalToFATBits(clusTotal)

	table := NewTable(nFATBits, clusTotal)
	table.Set(0, uint32(tmpl.MediaID)|0xF00)
	table.Set(1, (1<<uint(nFATBits))-1)

	nextCluster := 2
	assignClusters(tree, cbCluster, &nextCluster, table, nFATBits)

	fatBytes := table.Buf
	for copyIdx := 0; copyIdx < tmpl.TotalFATs; copyIdx++ {
		off := (vbaFAT+copyIdx*tmpl.FATSectors)*cbSector
		n := tmpl.FATSectors * cbSector
		if n > len(fatBytes) {
			n = len(fatBytes)
		}
		copy(buf[off:off+n], fatBytes[:n])
	}

	writeDirectory(buf, vbaRoot*cbSector, tmpl.RootDirEntries, tree, 0, 0)

	writeData(buf, vbaData, tmpl.SectorsPerCluster, cbSector, tree, 0)

	vols, files, err := Decode(buf, nil, w)
	if err != nil {
		return nil, nil, nil, err
	}
	var vol *VolInfo
	if len(vols) > 0 {
		vol = vols[0]
	}
	return buf, vol, files, nil
}

// selectTemplate implements spec §4.5 step 2: walk the ordered template
// table, skipping mismatched disk classes, and accept the first whose data
// area holds the tree (recomputed with that template's own cluster size).
func selectTemplate(tree []*FileDescriptor, targetKB int) (*geometry.Template, error) {
	wantFixed := geometry.FixedMedia(targetKB)
	topLevelCount := len(tree)

	for i := range geometry.Templates {
		t := &geometry.Templates[i]
		isFixed := t.MediaID == geometry.MediaFixed
		if isFixed != wantFixed {
			continue
		}
		if t.RootDirEntries < topLevelCount {
			continue
		}
		if targetKB != 0 && t.HiddenSectors > 0 && t.TotalSectors != targetKB*2 {
			continue
		}

		cbSector := t.BytesPerSector
		cbCluster := t.SectorsPerCluster * cbSector
		rootDirSectors := (t.RootDirEntries*dirEntrySize + cbSector - 1) / cbSector
		reservedSectors := 1
		dataSectors := t.TotalSectors - reservedSectors - t.TotalFATs*t.FATSectors - rootDirSectors
		if dataSectors <= 0 {
			continue
		}
		dataAreaBytes := dataSectors * cbSector

		totalSize := treeSize(tree, cbCluster)
		if totalSize <= dataAreaBytes {
			return t, nil
		}
	}
	return nil, ErrCapacityExceeded
}

// treeSize implements spec §4.5 step 1.
func treeSize(nodes []*FileDescriptor, cbCluster int) int {
	total := 0
	for _, n := range nodes {
		if n.isDir() {
			dirBytes := (len(n.Files) + 2) * dirEntrySize
			total += roundUp(dirBytes, cbCluster)
			total += treeSize(n.Files, cbCluster)
		} else {
			total += roundUp(n.Size, cbCluster)
		}
	}
	return total
}

func roundUp(n, unit int) int {
	if unit <= 0 {
		return n
	}
	return (n + unit - 1) / unit * unit
}

// writeBootSector fills a fresh BPB at byte offset off, per spec §4.5 step 5.
func writeBootSector(buf []byte, off int, t *geometry.Template) {
	sector := buf[off : off+512]
	sector[0] = 0xEB
	sector[1] = 0x3C
	sector[2] = 0x90
	copy(sector[geometry.OffOEM:geometry.OffOEM+8], []byte("PCJS.ORG"))
	putU16(sector, geometry.OffBytesPerSector, uint16(t.BytesPerSector))
	sector[geometry.OffSectorsPerClus] = byte(t.SectorsPerCluster)
	putU16(sector, geometry.OffReservedSectors, 1)
	sector[geometry.OffTotalFATs] = byte(t.TotalFATs)
	putU16(sector, geometry.OffRootDirEntries, uint16(t.RootDirEntries))
	putU16(sector, geometry.OffTotalSectors16, uint16(t.TotalSectors))
	sector[geometry.OffMediaID] = t.MediaID
	putU16(sector, geometry.OffFATSectors, uint16(t.FATSectors))
	putU16(sector, geometry.OffSectorsPerTrack, uint16(t.SectorsPerTrack))
	putU16(sector, geometry.OffTotalHeads, uint16(t.Heads))
	putU32(sector, geometry.OffHiddenSectors32, uint32(t.HiddenSectors))
	putU32(sector, geometry.OffLargeSectors32, 0)
	sector[geometry.BootSignatureOffset] = geometry.BootSignatureLo
	sector[geometry.BootSignatureOffset+1] = geometry.BootSignatureHi
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// assignClusters implements spec §4.5 step 6: for every node at this level,
// allocate a run of clusters and write its chain cells (first pass), then
// recurse into each subdirectory's own children (second pass).
func assignClusters(nodes []*FileDescriptor, cbCluster int, next *int, table *Table, nFATBits int) {
	for _, n := range nodes {
		var need int
		if n.isDir() {
			need = roundUp((len(n.Files)+2)*dirEntrySize, cbCluster) / cbCluster
		} else if n.Size > 0 {
			need = roundUp(n.Size, cbCluster) / cbCluster
		}
		n.nClusters = need
		if need == 0 {
			n.startCluster = 0
			continue
		}
		n.startCluster = *next
		for i := 0; i < need; i++ {
			cluster := *next + i
			if i == need-1 {
				table.Set(cluster, (1<<uint(nFATBits))-1)
			} else {
				table.Set(cluster, uint32(cluster+1))
			}
		}
		*next += need
	}

	for _, n := range nodes {
		if n.isDir() {
			assignClusters(n.Files, cbCluster, next, table, nFATBits)
		}
	}
}

// writeDirectory writes one directory's entries (root, when parentCluster
// and selfCluster are both 0 and no "."/".." synthesis is wanted, or a
// subdirectory with synthesized "." and ".." entries) at byte offset off,
// padding unused slots with 0xE5 per spec §4.5 step 8.
func writeDirectory(buf []byte, off int, capacity int, nodes []*FileDescriptor, selfCluster, parentCluster int) {
	slot := 0
	writeEntry := func(e dirEntry) {
		if slot >= capacity {
			return
		}
		copy(buf[off+slot*dirEntrySize:off+(slot+1)*dirEntrySize], e.encode())
		slot++
	}

	isRoot := selfCluster == 0 && parentCluster == 0
	if !isRoot {
		t, d := marshalTimeDate(time.Now())
		var dotBase, ddBase [8]byte
		var dotExt [3]byte
		copy(dotBase[:], ".       ")
		copy(ddBase[:], "..      ")
		copy(dotExt[:], "   ")
		writeEntry(dirEntry{Name: dotBase, Ext: dotExt, Attr: AttrSubdir, Time: t, Date: d, StartCluster: uint16(selfCluster)})
		writeEntry(dirEntry{Name: ddBase, Ext: dotExt, Attr: AttrSubdir, Time: t, Date: d, StartCluster: uint16(parentCluster)})
	}

	for _, n := range nodes {
		t, d := marshalTimeDate(n.Date)
		var base [8]byte
		var ext [3]byte
		base, ext = toShortName(n.Name)
		attr := n.Attr
		size := uint32(0)
		if n.isDir() {
			attr |= AttrSubdir
		} else if n.Size > 0 {
			size = uint32(n.Size)
		}
		writeEntry(dirEntry{Name: base, Ext: ext, Attr: attr, Time: t, Date: d, StartCluster: uint16(n.startCluster), Size: size})
	}

	for ; slot < capacity; slot++ {
		b := buf[off+slot*dirEntrySize : off+(slot+1)*dirEntrySize]
		b[0] = 0xE5
		for i := 1; i < dirEntrySize; i++ {
			b[i] = 0
		}
	}
}

// writeData writes every node's file bytes (or subdirectory's own entry
// table) into its assigned cluster chain, recursing depth-first in the same
// order assignClusters used (spec §4.5 step 9). parentCluster is the
// cluster of the directory nodes itself belongs to (0 for the root).
func writeData(buf []byte, vbaData, clusSecs, cbSector int, nodes []*FileDescriptor, parentCluster int) {
	cbCluster := clusSecs * cbSector
	for _, n := range nodes {
		if n.nClusters == 0 {
			continue
		}
		base := vbaData + (n.startCluster-2)*clusSecs
		off := base * cbSector

		if n.isDir() {
			capacity := n.nClusters * cbCluster / dirEntrySize
			writeDirectory(buf, off, capacity, n.Files, n.startCluster, parentCluster)
			continue
		}

		span := n.nClusters * cbCluster
		if span > len(buf)-off {
			span = len(buf) - off
		}
		copy(buf[off:off+span], n.Data)
	}

	for _, n := range nodes {
		if n.isDir() {
			writeData(buf, vbaData, clusSecs, cbSector, n.Files, n.startCluster)
		}
	}
}
