// Package diskjson defines the two on-disk JSON representations described
// in spec §4.3/§4.6: the bare "legacy" sector-only array, and the
// "extended" form carrying imageInfo/volTable/fileTable/diskData. It also
// migrates legacy sector field names to the canonical short keys.
package diskjson

// SectorJSON is one sector in the canonical ("diskData") representation,
// keyed with the short field names spec §3 specifies.
type SectorJSON struct {
	C      int      `json:"c"`
	H      int      `json:"h"`
	ID     int      `json:"id"`
	Length int      `json:"length"`
	Data   []uint32 `json:"data"`

	DataCRC   *uint32 `json:"dataCRC,omitempty"`
	DataError *int    `json:"dataError,omitempty"`
	DataMark  *int    `json:"dataMark,omitempty"`
	HeadCRC   *uint32 `json:"headCRC,omitempty"`
	HeadError *int    `json:"headError,omitempty"`

	IModify *int `json:"iModify,omitempty"`
	CModify *int `json:"cModify,omitempty"`

	FileInfo   *int `json:"file_info,omitempty"`
	FileOffset *int `json:"file_offset,omitempty"`
}

// legacySectorJSON is the pre-migration shape: long field names, and a
// sometimes-separate "pattern" word instead of it being folded into Data.
type legacySectorJSON struct {
	Cylinder *int     `json:"cylinder,omitempty"`
	Head     *int     `json:"head,omitempty"`
	Sector   *int     `json:"sector,omitempty"`
	Length   *int     `json:"length,omitempty"`
	Data     []uint32 `json:"data,omitempty"`
	Pattern  *uint32  `json:"pattern,omitempty"`
}

// ImageInfo is the extended JSON's "imageInfo" object.
type ImageInfo struct {
	Type          string `json:"type"` // always "CHS"
	Name          string `json:"name,omitempty"`
	Hash          string `json:"hash,omitempty"`
	Checksum      uint32 `json:"checksum"`
	Cylinders     int    `json:"cylinders"`
	Heads         int    `json:"heads"`
	TrackDefault  int    `json:"trackDefault"`
	SectorDefault int    `json:"sectorDefault"`
	DiskSize      int    `json:"diskSize"`
	// BootSector carries the original (pre-repair) BPB bytes, present only
	// when the resolver modified the boot sector (spec §4.6).
	BootSector []byte `json:"bootSector,omitempty"`
	Version    string `json:"version,omitempty"`
	Repository string `json:"repository,omitempty"`
	Command    string `json:"command,omitempty"`
}

// VolInfoJSON mirrors the VolInfo data model (spec §3).
type VolInfoJSON struct {
	IVolume    int   `json:"iVolume"`
	IPartition int   `json:"iPartition"`
	IDMedia    int   `json:"idMedia"`
	LBAStart   int   `json:"lbaStart"`
	LBATotal   int   `json:"lbaTotal"`
	NFATBits   int   `json:"nFATBits"`
	VBAFAT     int   `json:"vbaFAT"`
	VBARoot    int   `json:"vbaRoot"`
	VBAData    int   `json:"vbaData"`
	NEntries   int   `json:"nEntries"`
	ClusSecs   int   `json:"clusSecs"`
	ClusMax    int   `json:"clusMax"`
	ClusBad    int   `json:"clusBad"`
	ClusFree   int   `json:"clusFree"`
	ClusTotal  int   `json:"clusTotal"`
	CbSector   int   `json:"cbSector"`
}

// FileInfoJSON mirrors FileInfo. Name, Size and Vol are omitted when zero;
// present.ToFileInfoJSON always fills Name, since Path never ends with it.
type FileInfoJSON struct {
	IVolume      int    `json:"vol,omitempty"`
	Path         string `json:"path"`
	Name         string `json:"name,omitempty"`
	Attr         int    `json:"attr"`
	Date         int    `json:"date"`
	Size         int    `json:"size,omitempty"`
	StartCluster int    `json:"startCluster"`
	ALBA         []int  `json:"aLBA,omitempty"`
}

// Document is the extended JSON top-level object.
type Document struct {
	ImageInfo ImageInfo      `json:"imageInfo"`
	VolTable  []VolInfoJSON  `json:"volTable,omitempty"`
	FileTable []FileInfoJSON `json:"fileTable,omitempty"`
	DiskData  [][][]SectorJSON `json:"diskData"`
}
