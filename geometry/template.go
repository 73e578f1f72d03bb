package geometry

// Media descriptor bytes, per spec §6.
const (
	Media160K  = 0xFE
	Media180K  = 0xFC
	Media320K  = 0xFF
	Media360K  = 0xFD
	Media12xxK = 0xF9 // 720K or 1200K, disambiguated by size
	MediaF0    = 0xF0 // 1440K or 2880K, disambiguated by size
	MediaFixed = 0xF8
)

// Template is one entry of the static BPB-template table: a known,
// self-consistent set of BPB field values for a standard capacity (or, for
// fixed disks, for a capacity class selected by the builder).
type Template struct {
	Name              string
	MediaID           byte
	Cylinders         int
	Heads             int
	SectorsPerTrack   int
	BytesPerSector    int
	TotalSectors      int
	SectorsPerCluster int
	TotalFATs         int
	FATSectors        int
	RootDirEntries    int
	HiddenSectors     int
}

// DiskBytes returns the raw image size this template describes.
func (t Template) DiskBytes() int {
	return t.TotalSectors * t.BytesPerSector
}

// Templates is the static table referenced by spec §4.2 item 3 (geometry
// lookup) and §4.5 (builder template selection), ordered smallest first as
// the builder algorithm requires ("accept the first template whose data
// area fits").
var Templates = []Template{
	{Name: "160K", MediaID: Media160K, Cylinders: 40, Heads: 1, SectorsPerTrack: 8, BytesPerSector: 512,
		TotalSectors: 320, SectorsPerCluster: 1, TotalFATs: 2, FATSectors: 1, RootDirEntries: 64},
	{Name: "180K", MediaID: Media180K, Cylinders: 40, Heads: 1, SectorsPerTrack: 9, BytesPerSector: 512,
		TotalSectors: 360, SectorsPerCluster: 1, TotalFATs: 2, FATSectors: 2, RootDirEntries: 64},
	{Name: "320K", MediaID: Media320K, Cylinders: 40, Heads: 2, SectorsPerTrack: 8, BytesPerSector: 512,
		TotalSectors: 640, SectorsPerCluster: 2, TotalFATs: 2, FATSectors: 1, RootDirEntries: 112},
	{Name: "360K", MediaID: Media360K, Cylinders: 40, Heads: 2, SectorsPerTrack: 9, BytesPerSector: 512,
		TotalSectors: 720, SectorsPerCluster: 2, TotalFATs: 2, FATSectors: 2, RootDirEntries: 112},
	{Name: "720K", MediaID: Media12xxK, Cylinders: 80, Heads: 2, SectorsPerTrack: 9, BytesPerSector: 512,
		TotalSectors: 1440, SectorsPerCluster: 2, TotalFATs: 2, FATSectors: 3, RootDirEntries: 112},
	{Name: "1200K", MediaID: Media12xxK, Cylinders: 80, Heads: 2, SectorsPerTrack: 15, BytesPerSector: 512,
		TotalSectors: 2400, SectorsPerCluster: 1, TotalFATs: 2, FATSectors: 7, RootDirEntries: 224},
	{Name: "1440K", MediaID: MediaF0, Cylinders: 80, Heads: 2, SectorsPerTrack: 18, BytesPerSector: 512,
		TotalSectors: 2880, SectorsPerCluster: 1, TotalFATs: 2, FATSectors: 9, RootDirEntries: 224},
	{Name: "2880K", MediaID: MediaF0, Cylinders: 80, Heads: 2, SectorsPerTrack: 36, BytesPerSector: 512,
		TotalSectors: 5760, SectorsPerCluster: 2, TotalFATs: 2, FATSectors: 9, RootDirEntries: 224},
	// Fixed-disk classes: small classic MFM/IDE geometries, hiddenSectors
	// set to one track (the MBR/reserved cylinder, see spec §4.5 step 3).
	{Name: "10M-fixed", MediaID: MediaFixed, Cylinders: 306, Heads: 4, SectorsPerTrack: 17, BytesPerSector: 512,
		TotalSectors: 20808, SectorsPerCluster: 8, TotalFATs: 2, FATSectors: 8, RootDirEntries: 512, HiddenSectors: 17},
	{Name: "20M-fixed", MediaID: MediaFixed, Cylinders: 615, Heads: 4, SectorsPerTrack: 17, BytesPerSector: 512,
		TotalSectors: 41820, SectorsPerCluster: 8, TotalFATs: 2, FATSectors: 16, RootDirEntries: 512, HiddenSectors: 17},
	{Name: "32M-fixed", MediaID: MediaFixed, Cylinders: 733, Heads: 7, SectorsPerTrack: 17, BytesPerSector: 512,
		TotalSectors: 87227, SectorsPerCluster: 8, TotalFATs: 2, FATSectors: 26, RootDirEntries: 512, HiddenSectors: 17},
}

// LookupByBufferLength returns the template whose DiskBytes() matches n,
// or nil if none matches.
func LookupByBufferLength(n int) *Template {
	for i := range Templates {
		if Templates[i].DiskBytes() == n {
			return &Templates[i]
		}
	}
	return nil
}

// LookupByMediaAndSize returns the template matching both mediaID and a
// total-sector*bytesPerSector size, as used by the default-BPB repair
// path (spec §4.2 item 5).
func LookupByMediaAndSize(mediaID byte, totalBytes int) *Template {
	for i := range Templates {
		t := &Templates[i]
		if t.MediaID == mediaID && t.DiskBytes() == totalBytes {
			return t
		}
	}
	return nil
}

// shrinkMap expresses spec §4.2 item 6: a physical capacity whose media ID
// indicates a smaller logical format occupies the same physical size.
// Key is the larger (physical) template name, value the smaller (logical).
var shrinkMap = map[string]string{
	"180K": "160K",
	"360K": "320K",
}

// ShrinkToLogical returns the logical template for physical, if physical's
// size hosts a smaller logical format, else nil.
func ShrinkToLogical(physical *Template) *Template {
	name, ok := shrinkMap[physical.Name]
	if !ok {
		return nil
	}
	for i := range Templates {
		if Templates[i].Name == name {
			return &Templates[i]
		}
	}
	return nil
}

// FixedMedia reports whether targetKB describes a fixed-disk class rather
// than a floppy, per spec §4.5 step 2 ("MEDIA_FIXED iff targetKB >= 10000").
func FixedMedia(targetKB int) bool {
	return targetKB >= 10000
}
