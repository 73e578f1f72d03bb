package fat

import (
	"github.com/pcediskimg/diskimage/geometry"
	"github.com/pcediskimg/diskimage/sector"
	"github.com/pcediskimg/diskimage/warn"
)

// dirSector is one physical sector's worth of directory-entry bytes,
// tagged with the LBA it came from so entries can attribute their data
// sectors back to a FileInfo.
type dirSector struct {
	LBA  int
	Data []byte
}

// decoder holds the state threaded through one Decode call: the source
// buffer, an optional LBA-indexed sector list used to record file back-
// references, and the accumulated results.
type decoder struct {
	buf          []byte
	sectorsByLBA []*sector.Sector
	w            *warn.List

	volumes []*VolInfo
	files   []*FileInfo
}

// Decode walks buf for every FAT12/FAT16 volume it can find: first an
// unpartitioned interpretation at LBA 0 (volume 0), then every partition
// uncovered by enumeratePartitions (volumes 1..N), per spec §4.4. sectorsByLBA
// may be nil; when present, index i must be the *sector.Sector occupying
// logical block i, and Decode annotates FileIndex/FileOffset on every
// sector it attributes to a file.
func Decode(buf []byte, sectorsByLBA []*sector.Sector, w *warn.List) ([]*VolInfo, []*FileInfo, error) {
	d := &decoder{buf: buf, sectorsByLBA: sectorsByLBA, w: w}

	d.decodeVolume(0, -1, 0)

	for i, p := range enumeratePartitions(buf, w) {
		d.decodeVolume(i+1, i, p.LBAStart)
	}

	return d.volumes, d.files, nil
}

// volLayout is the handful of fields decodeVolume needs to lay out a
// volume's FAT, root directory and data area, whether they came from a
// decoded BPB or a pre-BPB default-template lookup.
type volLayout struct {
	mediaID           byte
	reservedSectors   int
	totalFATs         int
	fatSectors        int
	rootDirEntries    int
	sectorsPerCluster int
	totalSectors      int
	cbSector          int
}

// decodeVolume attempts to interpret the boot sector at LBA lbaStart as a
// FAT12/FAT16 volume. It returns the decoded VolInfo, or nil if lbaStart
// does not hold a recognizable boot sector or matching pre-BPB template.
func (d *decoder) decodeVolume(iVolume, iPartition, lbaStart int) *VolInfo {
	sectorOffset := lbaStart * geometry.SectorSize
	if sectorOffset+geometry.SectorSize > len(d.buf) {
		return nil
	}
	if d.buf[sectorOffset] != 0xEB && d.buf[sectorOffset] != 0xE9 {
		if iVolume > 0 {
			d.w.Addf("fat: partition %d at LBA %d has no recognizable boot sector", iPartition, lbaStart)
			return nil
		}
		return d.decodePreBPBVolume(iVolume, iPartition, lbaStart)
	}

	dos331 := false
	if sectorOffset+0x15 < len(d.buf) {
		ts16 := int(d.buf[sectorOffset+0x13]) | int(d.buf[sectorOffset+0x14])<<8
		dos331 = ts16 == 0
	}
	bpb, err := geometry.DecodeBPB(d.buf, sectorOffset, dos331)
	if err != nil {
		return nil
	}
	if bpb.BytesPerSector == 0 || bpb.SectorsPerCluster == 0 || bpb.TotalFATs == 0 {
		d.w.Addf("fat: boot sector at LBA %d has an unusable BPB", lbaStart)
		return nil
	}

	layout := volLayout{
		mediaID:           bpb.MediaID,
		reservedSectors:   int(bpb.ReservedSectors),
		totalFATs:         int(bpb.TotalFATs),
		fatSectors:        int(bpb.FATSectors),
		rootDirEntries:    int(bpb.RootDirEntries),
		sectorsPerCluster: int(bpb.SectorsPerCluster),
		totalSectors:      int(bpb.TotalSectors()),
		cbSector:          int(bpb.BytesPerSector),
	}
	return d.buildVolume(iVolume, iPartition, lbaStart, layout)
}

// decodePreBPBVolume handles DOS 1.x media that carries no BPB at all: the
// boot sector has no recognizable jump, so the FAT's media descriptor byte
// (the first byte of the first FAT sector, one reserved sector past the
// boot sector) and the buffer's remaining size are used to look up a
// matching default-BPB template, per spec §4.4.
func (d *decoder) decodePreBPBVolume(iVolume, iPartition, lbaStart int) *VolInfo {
	cbSector := geometry.SectorSize
	fatOffset := (lbaStart + 1) * cbSector
	if fatOffset >= len(d.buf) {
		return nil
	}
	fatID := d.buf[fatOffset]
	diskSize := len(d.buf) - lbaStart*cbSector

	tmpl := geometry.LookupByMediaAndSize(fatID, diskSize)
	if tmpl == nil {
		d.w.Addf("fat: no boot sector jump and no matching pre-BPB template for media id %#x, size %d at LBA %d", fatID, diskSize, lbaStart)
		return nil
	}

	layout := volLayout{
		mediaID:           tmpl.MediaID,
		reservedSectors:   1,
		totalFATs:         tmpl.TotalFATs,
		fatSectors:        tmpl.FATSectors,
		rootDirEntries:    tmpl.RootDirEntries,
		sectorsPerCluster: tmpl.SectorsPerCluster,
		totalSectors:      tmpl.TotalSectors,
		cbSector:          tmpl.BytesPerSector,
	}
	return d.buildVolume(iVolume, iPartition, lbaStart, layout)
}

// buildVolume lays out the FAT, root directory and data area from layout,
// decodes the FAT table and root directory, and walks the file tree.
func (d *decoder) buildVolume(iVolume, iPartition, lbaStart int, layout volLayout) *VolInfo {
	cbSector := layout.cbSector
	vbaFAT := lbaStart + layout.reservedSectors
	vbaRoot := vbaFAT + layout.totalFATs*layout.fatSectors
	rootDirSectors := (layout.rootDirEntries*dirEntrySize + cbSector - 1) / cbSector
	vbaData := vbaRoot + rootDirSectors

	totalSectors := layout.totalSectors
	dataSectors := totalSectors - (vbaData - lbaStart)
	var clusTotal int
	if dataSectors > 0 && layout.sectorsPerCluster > 0 {
		clusTotal = dataSectors / layout.sectorsPerCluster
	}
	nFATBits := clusTotalToFATBits(clusTotal)

	fatOffset := vbaFAT * cbSector
	fatBytes := layout.fatSectors * cbSector
	if fatOffset >= len(d.buf) {
		d.w.Addf("fat: FAT region at LBA %d falls outside the buffer", vbaFAT)
		return nil
	}
	if fatOffset+fatBytes > len(d.buf) {
		fatBytes = len(d.buf) - fatOffset
	}
	table := &Table{Bits: nFATBits, Buf: append([]byte(nil), d.buf[fatOffset:fatOffset+fatBytes]...)}

	if len(table.Buf) > 0 && table.Buf[0] != layout.mediaID {
		d.w.Addf("fat: FAT id byte %#x does not match media id %#x at LBA %d", table.Buf[0], layout.mediaID, lbaStart)
	}

	vol := &VolInfo{
		IVolume:    iVolume,
		IPartition: iPartition,
		IDMedia:    layout.mediaID,
		LBAStart:   lbaStart,
		LBATotal:   totalSectors,
		NFATBits:   nFATBits,
		VBAFAT:     vbaFAT,
		VBARoot:    vbaRoot,
		VBAData:    vbaData,
		NEntries:   layout.rootDirEntries,
		ClusSecs:   layout.sectorsPerCluster,
		ClusMax:    clusTotal + 1,
		ClusTotal:  clusTotal,
		CbSector:   cbSector,
	}
	for c := 2; c < clusTotal+2; c++ {
		v := table.Get(c)
		switch {
		case isFree(v):
			vol.ClusFree++
		case isBad(nFATBits, v):
			vol.ClusBad++
		}
	}

	d.volumes = append(d.volumes, vol)

	rootSectors := d.collectContiguousSectors(vbaRoot, rootDirSectors, cbSector)
	d.walkDirectory(vol, table, rootSectors, `\`)

	return vol
}

func (d *decoder) collectContiguousSectors(startLBA, count, cbSector int) []dirSector {
	out := make([]dirSector, 0, count)
	for s := 0; s < count; s++ {
		lba := startLBA + s
		off := lba * cbSector
		if off+cbSector > len(d.buf) {
			break
		}
		out = append(out, dirSector{LBA: lba, Data: d.buf[off : off+cbSector]})
	}
	return out
}

func (d *decoder) collectClusterChainSectors(vol *VolInfo, table *Table, startCluster int) []dirSector {
	if startCluster == 0 {
		return nil
	}
	chain := table.Chain(startCluster, func(c int, cell uint32) {
		d.w.Addf("fat: subdirectory cluster chain broken at cluster %d (cell=%#x)", c, cell)
	})
	var out []dirSector
	for _, c := range chain {
		base := vol.VBAData + (c-2)*vol.ClusSecs
		out = append(out, d.collectContiguousSectors(base, vol.ClusSecs, vol.CbSector)...)
	}
	return out
}

// walkDirectory decodes every entry across sectors (one directory's worth
// of sectors, root or a subdirectory's cluster chain), recursing into
// subdirectories. It stops at the first free (0x00) entry, per spec §3.
func (d *decoder) walkDirectory(vol *VolInfo, table *Table, sectors []dirSector, path string) {
	entriesPerSector := 0
	if len(sectors) > 0 {
		entriesPerSector = len(sectors[0].Data) / dirEntrySize
	}

scan:
	for _, ds := range sectors {
		for i := 0; i < entriesPerSector; i++ {
			off := i * dirEntrySize
			if off+dirEntrySize > len(ds.Data) {
				break
			}
			raw := ds.Data[off : off+dirEntrySize]
			if raw[0] == 0x00 {
				break scan
			}
			if raw[0] == 0xE5 {
				continue
			}
			e := decodeDirEntry(raw)
			name := e.displayName()
			if name == "." || name == ".." {
				continue
			}

			fi := &FileInfo{
				IVolume:      vol.IVolume,
				Path:         path,
				Name:         name,
				Attr:         e.Attr,
				Date:         unmarshalTimeDate(e.Time, e.Date),
				Size:         int(e.Size),
				StartCluster: int(e.StartCluster),
			}

			if e.Attr&AttrVolume == 0 && e.StartCluster != 0 {
				chain := table.Chain(int(e.StartCluster), func(c int, cell uint32) {
					d.w.Addf("fat: file %s%s has a broken cluster chain at cluster %d (cell=%#x)", path, name, c, cell)
				})
				for _, c := range chain {
					base := vol.VBAData + (c-2)*vol.ClusSecs
					for s := 0; s < vol.ClusSecs; s++ {
						fi.ALBA = append(fi.ALBA, base+s)
					}
				}
			}

			d.files = append(d.files, fi)
			d.attributeSectors(fi)

			if fi.IsDir() {
				subSectors := d.collectClusterChainSectors(vol, table, int(e.StartCluster))
				d.walkDirectory(vol, table, subSectors, path+name+`\`)
			}
		}
	}
}

// attributeSectors records, on every backing sector.Sector that composes
// fi's data (when the caller supplied sectorsByLBA), which file owns it
// and at what byte offset, per spec §4.4's sector back-reference writing.
// A sector already attributed to a different file is a cross-link and is
// reported as a warning rather than silently overwritten.
func (d *decoder) attributeSectors(fi *FileInfo) {
	if d.sectorsByLBA == nil {
		return
	}
	fileIndex := len(d.files) - 1
	offset := 0
	for _, lba := range fi.ALBA {
		if lba < 0 || lba >= len(d.sectorsByLBA) {
			continue
		}
		sec := d.sectorsByLBA[lba]
		if sec == nil {
			continue
		}
		if sec.FileIndex >= 0 && sec.FileIndex != fileIndex {
			d.w.Addf("fat: sector LBA %d is cross-linked between file index %d and %q", lba, sec.FileIndex, fi.Name)
		} else {
			sec.FileIndex = fileIndex
			sec.FileOffset = offset
		}
		if sec.DataError != 0 {
			d.w.Addf("fat: file %q includes sector LBA %d which is marked data-error", fi.Name, lba)
		}
		offset += sec.Length
	}
}
