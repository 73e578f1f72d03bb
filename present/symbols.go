package present

import (
	"fmt"

	"github.com/pcediskimg/diskimage/fat"
)

// AttachSymbolLoader installs loader on every non-directory entry in files,
// so FileInfo.Symbols() can be called lazily by a caller (e.g. a listing
// that wants to annotate executables) without present doing the parsing
// itself at decode time.
func AttachSymbolLoader(files []*fat.FileInfo, loader fat.SymbolLoader) {
	for _, f := range files {
		if !f.IsDir() {
			f.SetSymbolLoader(loader)
		}
	}
}

// NewMZHeaderSymbolLoader returns a fat.SymbolLoader that reads a file's
// bytes out of buf via its cluster chain (ALBA, cbSector) and, if they open
// with the MS-DOS "MZ" executable signature, reports the relocation
// table's entry count and offset as its one "symbol" line. Any other file
// shape yields no symbols. This gives the SymbolLoader hook a concrete,
// exercised implementation rather than leaving it purely a type definition.
func NewMZHeaderSymbolLoader(buf []byte, cbSector int) fat.SymbolLoader {
	return func(f *fat.FileInfo) ([]string, error) {
		if len(f.ALBA) == 0 || f.Size < 0x1A {
			return nil, nil
		}
		header := make([]byte, 0, 0x1A)
		for _, lba := range f.ALBA {
			off := lba * cbSector
			if off+cbSector > len(buf) {
				break
			}
			header = append(header, buf[off:off+cbSector]...)
			if len(header) >= 0x1A {
				break
			}
		}
		if len(header) < 0x1A || header[0] != 'M' || header[1] != 'Z' {
			return nil, nil
		}
		nReloc := int(header[0x06]) | int(header[0x07])<<8
		relocOffset := int(header[0x18]) | int(header[0x19])<<8
		return []string{fmt.Sprintf("MZ executable: %d relocation entries at offset %#x", nReloc, relocOffset)}, nil
	}
}
