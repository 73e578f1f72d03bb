package fat

import (
	"strings"
	"time"
)

const dirEntrySize = 32

// dirEntry is the 32-byte on-disk directory entry layout (spec §3).
type dirEntry struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         byte
	Reserved     [10]byte
	Time         uint16
	Date         uint16
	StartCluster uint16
	Size         uint32
}

func decodeDirEntry(b []byte) dirEntry {
	var e dirEntry
	copy(e.Name[:], b[0:8])
	copy(e.Ext[:], b[8:11])
	e.Attr = b[11]
	copy(e.Reserved[:], b[12:22])
	e.Time = uint16(b[22]) | uint16(b[23])<<8
	e.Date = uint16(b[24]) | uint16(b[25])<<8
	e.StartCluster = uint16(b[26]) | uint16(b[27])<<8
	e.Size = uint32(b[28]) | uint32(b[29])<<8 | uint32(b[30])<<16 | uint32(b[31])<<24
	return e
}

func (e dirEntry) encode() []byte {
	b := make([]byte, dirEntrySize)
	copy(b[0:8], e.Name[:])
	copy(b[8:11], e.Ext[:])
	b[11] = e.Attr
	b[22] = byte(e.Time)
	b[23] = byte(e.Time >> 8)
	b[24] = byte(e.Date)
	b[25] = byte(e.Date >> 8)
	b[26] = byte(e.StartCluster)
	b[27] = byte(e.StartCluster >> 8)
	b[28] = byte(e.Size)
	b[29] = byte(e.Size >> 8)
	b[30] = byte(e.Size >> 16)
	b[31] = byte(e.Size >> 24)
	return b
}

// displayName returns the entry's name and extension with their space
// padding trimmed, as "NAME.EXT" (or "NAME" when ext is blank).
func (e dirEntry) displayName() string {
	name := strings.TrimRight(string(e.Name[:]), " ")
	ext := strings.TrimRight(string(e.Ext[:]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// unmarshalTimeDate converts the packed FAT time/date fields to a
// time.Time in UTC, per spec §3: time is hhhhhmmm mmmxxxxx (seconds/2),
// date is yyyyyyym mmmddddd (year base 1980).
func unmarshalTimeDate(t, d uint16) time.Time {
	sec := int(t&0x1F) * 2
	min := int((t >> 5) & 0x3F)
	hour := int((t >> 11) & 0x1F)
	day := int(d & 0x1F)
	month := int((d >> 5) & 0x0F)
	year := 1980 + int((d>>9)&0x7F)
	if day == 0 {
		day = 1
	}
	if month == 0 {
		month = 1
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// marshalTimeDate is the inverse of unmarshalTimeDate, clamping years
// outside [1980, 2099] to the nearest boundary (spec §4.5).
func marshalTimeDate(when time.Time) (t, d uint16) {
	when = when.UTC()
	year := when.Year()
	if year < 1980 {
		year = 1980
	} else if year > 2099 {
		year = 2099
	}
	d = uint16(year-1980)<<9 | uint16(when.Month())<<5 | uint16(when.Day())
	t = uint16(when.Hour())<<11 | uint16(when.Minute())<<5 | uint16(when.Second()/2)
	return t, d
}

// PackTimeDate combines the packed FAT time/date fields into the single
// int the JSON schema's FileInfoJSON.Date carries (spec §4.6), high 16 bits
// date, low 16 bits time.
func PackTimeDate(when time.Time) int {
	t, d := marshalTimeDate(when)
	return int(d)<<16 | int(t)
}

// UnpackTimeDate is PackTimeDate's inverse.
func UnpackTimeDate(packed int) time.Time {
	d := uint16(packed >> 16)
	t := uint16(packed)
	return unmarshalTimeDate(t, d)
}

// shortNameCharset is the set of characters 8.3 short names may contain
// verbatim; anything else is replaced with '_' (spec §4.5 step 9).
const shortNameCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#$%&'()-@^_`{}~"

func isShortNameChar(r rune) bool {
	return strings.ContainsRune(shortNameCharset, r)
}

// toShortName uppercases name, replaces disallowed characters with '_',
// and splits/truncates it into an 8-char base and 3-char extension.
func toShortName(name string) (base [8]byte, ext [3]byte) {
	upper := strings.ToUpper(name)
	baseStr, extStr := upper, ""
	if idx := strings.LastIndex(upper, "."); idx >= 0 {
		baseStr, extStr = upper[:idx], upper[idx+1:]
	}
	sanitize := func(s string, n int) []byte {
		out := make([]byte, n)
		for i := range out {
			out[i] = ' '
		}
		i := 0
		for _, r := range s {
			if i >= n {
				break
			}
			if !isShortNameChar(r) {
				r = '_'
			}
			out[i] = byte(r)
			i++
		}
		return out
	}
	copy(base[:], sanitize(baseStr, 8))
	copy(ext[:], sanitize(extStr, 3))
	return base, ext
}

// toVolumeLabel takes the first 11 characters of name with no period,
// per spec §4.5 step 9.
func toVolumeLabel(name string) [11]byte {
	upper := strings.ToUpper(strings.ReplaceAll(name, ".", ""))
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	i := 0
	for _, r := range upper {
		if i >= 11 {
			break
		}
		if !isShortNameChar(r) {
			r = '_'
		}
		out[i] = byte(r)
		i++
	}
	return out
}
