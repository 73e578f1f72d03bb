package geometry

// XDFTotalSectors is the TOTAL_SECS value (spec §4.2 item 4) that signals
// an IBM XDF disk when XDF support is enabled.
const XDFTotalSectors = 3680

// XDFSector describes one sector slot of an XDF track: its sector ID and
// byte size.
type XDFSector struct {
	ID   int
	Size int
}

// cyl0Sectors is cylinder 0's uniform 19-sectors-of-512-bytes layout.
func cyl0Sectors() []XDFSector {
	out := make([]XDFSector, 19)
	for i := range out {
		out[i] = XDFSector{ID: i + 1, Size: 512}
	}
	return out
}

// xdfIDs is the fixed sector-ID set for cylinders >= 1.
var xdfIDs = [4]int{2, 3, 4, 6}

// xdfSizesHead0/xdfSizesHead1 are the per-head size orderings for the four
// variable-size sectors, per spec §4.2 item 4.
var (
	xdfSizesHead0 = [4]int{1024, 512, 2048, 8192}
	xdfSizesHead1 = [4]int{8192, 2048, 1024, 512}
)

// XDFTrack returns the sector layout for the given cylinder/head of an XDF
// disk.
func XDFTrack(cylinder, head int) []XDFSector {
	if cylinder == 0 {
		return cyl0Sectors()
	}
	sizes := xdfSizesHead0
	if head == 1 {
		sizes = xdfSizesHead1
	}
	out := make([]XDFSector, 4)
	for i := range out {
		out[i] = XDFSector{ID: xdfIDs[i], Size: sizes[i]}
	}
	return out
}
