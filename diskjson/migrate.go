package diskjson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseAny accepts either the legacy bare-array form or the extended
// {imageInfo,...} form and returns a normalized Document. Legacy input
// yields a Document with a zero-value ImageInfo (the caller is expected to
// derive geometry-level ImageInfo fields separately, since legacy JSON
// never carried them).
func ParseAny(data []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("diskjson: empty input")
	}
	switch trimmed[0] {
	case '{':
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("diskjson: decoding extended document: %w", err)
		}
		return &doc, nil
	case '[':
		var legacy [][][]legacySectorJSON
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("diskjson: decoding legacy document: %w", err)
		}
		return &Document{DiskData: migrateLegacy(legacy)}, nil
	default:
		return nil, fmt.Errorf("diskjson: input is neither a legacy array nor an extended object")
	}
}

// migrateLegacy renames legacy long field names to the canonical short
// keys and, when a sector carried a separately stored "pattern" word,
// appends it as the final word of Data (preserving the run-length
// compression contract: the pattern is the value that repeats to fill the
// sector, so it belongs at the end of the stored word array).
func migrateLegacy(legacy [][][]legacySectorJSON) [][][]SectorJSON {
	out := make([][][]SectorJSON, len(legacy))
	for ci, cyl := range legacy {
		out[ci] = make([][]SectorJSON, len(cyl))
		for hi, head := range cyl {
			out[ci][hi] = make([]SectorJSON, len(head))
			for si, sec := range head {
				out[ci][hi][si] = migrateSector(sec)
			}
		}
	}
	return out
}

func migrateSector(s legacySectorJSON) SectorJSON {
	canon := SectorJSON{
		C:    intOr(s.Cylinder, 0),
		H:    intOr(s.Head, 0),
		ID:   intOr(s.Sector, 0),
		Data: append([]uint32(nil), s.Data...),
	}
	if s.Length != nil {
		canon.Length = *s.Length
	} else {
		canon.Length = len(s.Data) * 4
	}
	if s.Pattern != nil {
		canon.Data = append(canon.Data, *s.Pattern)
	}
	return canon
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
