package present

import (
	"github.com/pcediskimg/diskimage/diskjson"
	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/sector"
)

// ToVolInfoJSON converts one decoded volume to its JSON mirror (spec §3).
func ToVolInfoJSON(v *fat.VolInfo) diskjson.VolInfoJSON {
	return diskjson.VolInfoJSON{
		IVolume:    v.IVolume,
		IPartition: v.IPartition,
		IDMedia:    int(v.IDMedia),
		LBAStart:   v.LBAStart,
		LBATotal:   v.LBATotal,
		NFATBits:   v.NFATBits,
		VBAFAT:     v.VBAFAT,
		VBARoot:    v.VBARoot,
		VBAData:    v.VBAData,
		NEntries:   v.NEntries,
		ClusSecs:   v.ClusSecs,
		ClusMax:    v.ClusMax,
		ClusBad:    v.ClusBad,
		ClusFree:   v.ClusFree,
		ClusTotal:  v.ClusTotal,
		CbSector:   v.CbSector,
	}
}

// ToFileInfoJSON converts one decoded file entry, per spec §4.6's omission
// rules: "name" is only ever omitted when "path" already ends with it,
// which this engine's Path (always a directory, never including the file's
// own name) never does — so name is always present here; size/vol rely on
// their struct tags' omitempty.
func ToFileInfoJSON(f *fat.FileInfo) diskjson.FileInfoJSON {
	return diskjson.FileInfoJSON{
		IVolume:      f.IVolume,
		Path:         f.Path,
		Name:         f.Name,
		Attr:         int(f.Attr),
		Date:         fat.PackTimeDate(f.Date),
		Size:         f.Size,
		StartCluster: f.StartCluster,
		ALBA:         append([]int(nil), f.ALBA...),
	}
}

// ToFileTable converts every decoded file, skipping "." and ".." (already
// absent from fat.Decode's output) and volume-label entries.
func ToFileTable(files []*fat.FileInfo) []diskjson.FileInfoJSON {
	out := make([]diskjson.FileInfoJSON, 0, len(files))
	for _, f := range files {
		if f.Attr&fat.AttrVolume != 0 {
			continue
		}
		out = append(out, ToFileInfoJSON(f))
	}
	return out
}

// toSectorJSON converts one physical sector, omitting optional fields that
// were never recorded (nil CRC, zero error, no modification yet, no file
// attribution).
func toSectorJSON(s *sector.Sector) diskjson.SectorJSON {
	sj := diskjson.SectorJSON{
		C: s.C, H: s.H, ID: s.ID, Length: s.Length,
		Data: append([]uint32(nil), s.Data...),
	}
	if s.DataCRC != nil {
		sj.DataCRC = s.DataCRC
	}
	if s.DataError != 0 {
		v := s.DataError
		sj.DataError = &v
	}
	if s.DataMark != nil {
		v := int(*s.DataMark)
		sj.DataMark = &v
	}
	if s.HeadCRC != nil {
		sj.HeadCRC = s.HeadCRC
	}
	if s.HeadError != 0 {
		v := s.HeadError
		sj.HeadError = &v
	}
	if s.CModify != 0 {
		im, cm := s.IModify, s.CModify
		sj.IModify = &im
		sj.CModify = &cm
	}
	if s.FileIndex >= 0 {
		fi, fo := s.FileIndex, s.FileOffset
		sj.FileInfo = &fi
		sj.FileOffset = &fo
	}
	return sj
}

// BuildDiskData groups a flat sector list into the nested
// [cylinder][head][]SectorJSON shape spec §4.3/§4.6 names "diskData",
// preserving the order in which new cylinders/heads are first encountered.
func BuildDiskData(sectors []*sector.Sector) [][][]diskjson.SectorJSON {
	cIndex := map[int]int{}
	hIndex := []map[int]int{}
	var cyls [][][]diskjson.SectorJSON

	for _, s := range sectors {
		ci, ok := cIndex[s.C]
		if !ok {
			ci = len(cyls)
			cIndex[s.C] = ci
			cyls = append(cyls, nil)
			hIndex = append(hIndex, map[int]int{})
		}
		hi, ok := hIndex[ci][s.H]
		if !ok {
			hi = len(cyls[ci])
			hIndex[ci][s.H] = hi
			cyls[ci] = append(cyls[ci], nil)
		}
		cyls[ci][hi] = append(cyls[ci][hi], toSectorJSON(s))
	}
	return cyls
}

// ToDocument assembles the extended JSON document (spec §4.6) from a
// decoded volume/file table, raw sector grid, and caller-supplied image
// metadata (checksum, geometry, version/command strings).
func ToDocument(info diskjson.ImageInfo, vols []*fat.VolInfo, files []*fat.FileInfo, sectors []*sector.Sector) *diskjson.Document {
	doc := &diskjson.Document{
		ImageInfo: info,
		DiskData:  BuildDiskData(sectors),
	}
	for _, v := range vols {
		doc.VolTable = append(doc.VolTable, ToVolInfoJSON(v))
	}
	doc.FileTable = ToFileTable(files)
	return doc
}
