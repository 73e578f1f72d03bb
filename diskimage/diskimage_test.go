package diskimage_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"testing"

	"github.com/pcediskimg/diskimage/diskimage"
	"github.com/pcediskimg/diskimage/diskjson"
	"github.com/pcediskimg/diskimage/fat"
	"github.com/pcediskimg/diskimage/warn"
)

var psiCRCTable = crc32.MakeTable(crc32.Castagnoli)

func crc32OfPSIChunk(id string, payload []byte) uint32 {
	sum := crc32.New(psiCRCTable)
	sum.Write([]byte(id))
	binary.Write(sum, binary.BigEndian, uint32(len(payload)))
	sum.Write(payload)
	return sum.Sum32()
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return b
}

// writePSISample writes a minimal one-sector PSI stream whose sector
// carries the data-error flag, so FromPSI/Read can be exercised without a
// full PCE-produced fixture.
func writePSISample(t *testing.T, w *bytes.Buffer) {
	t.Helper()
	writeChunk := func(id string, payload []byte) {
		var hdr bytes.Buffer
		hdr.WriteString(id)
		var sz [4]byte
		sz[0] = byte(len(payload) >> 24)
		sz[1] = byte(len(payload) >> 16)
		sz[2] = byte(len(payload) >> 8)
		sz[3] = byte(len(payload))
		hdr.Write(sz[:])
		hdr.Write(payload)

		sum := crc32OfPSIChunk(id, payload)
		var crc [4]byte
		crc[0] = byte(sum >> 24)
		crc[1] = byte(sum >> 16)
		crc[2] = byte(sum >> 8)
		crc[3] = byte(sum)

		w.Write(hdr.Bytes())
		w.Write(crc[:])
	}

	sect := make([]byte, 12)
	sect[2] = 1      // sector ID 1
	sect[5] = 4      // size = 4 bytes
	sect[6] = 1 << 2 // SectFlagDataError
	writeChunk("SECT", sect)
	writeChunk("END ", nil)
}

func buildSample(t *testing.T) []byte {
	t.Helper()
	tree := []*fat.FileDescriptor{
		{Name: "HELLO.TXT", Size: 13, Data: []byte("Hello, world!")},
	}
	buf, _, _, err := fat.Build(tree, 160, &warn.List{})
	if err != nil {
		t.Fatalf("fat.Build: %v", err)
	}
	return buf
}

func TestFromBufferGetDataRoundTrip(t *testing.T) {
	buf := buildSample(t)

	di, err := diskimage.FromBuffer(buf, diskimage.FromBufferOptions{})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	out, err := di.GetData()
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !bytes.Equal(buf, out) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(out), len(buf))
	}
}

func TestBuildTablesFindsFile(t *testing.T) {
	buf := buildSample(t)
	di, err := diskimage.FromBuffer(buf, diskimage.FromBufferOptions{})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	vols, files, err := di.BuildTables()
	if err != nil {
		t.Fatalf("BuildTables: %v", err)
	}
	if len(vols) == 0 {
		t.Fatal("BuildTables found no volumes")
	}
	found := false
	for _, f := range files {
		if f.Name == "HELLO.TXT" {
			found = true
		}
	}
	if !found {
		t.Fatalf("BuildTables did not find HELLO.TXT in %+v", files)
	}

	di.DeleteTables()
	if len(di.Files()) != 0 || len(di.Volumes()) != 0 {
		t.Fatal("DeleteTables did not clear tables")
	}
}

func TestGetJSONThenFromJSONRoundTrip(t *testing.T) {
	buf := buildSample(t)
	di, err := diskimage.FromBuffer(buf, diskimage.FromBufferOptions{})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	doc := di.GetJSON(diskjson.ImageInfo{Name: "sample"})

	di2, err := diskimage.FromJSON(mustMarshal(t, doc))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	out, err := di2.GetData()
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !bytes.Equal(buf, out) {
		t.Fatalf("json round trip mismatch: got %d bytes, want %d bytes", len(out), len(buf))
	}
}

func TestBuildTablesAttachesSymbolLoader(t *testing.T) {
	buf := buildSample(t)
	di, err := diskimage.FromBuffer(buf, diskimage.FromBufferOptions{})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	_, files, err := di.BuildTables()
	if err != nil {
		t.Fatalf("BuildTables: %v", err)
	}
	for _, f := range files {
		if f.Name != "HELLO.TXT" {
			continue
		}
		symbols, err := f.Symbols()
		if err != nil {
			t.Fatalf("Symbols: %v", err)
		}
		if symbols != nil {
			t.Fatalf("HELLO.TXT is not an MZ executable, want no symbols, got %v", symbols)
		}
		return
	}
	t.Fatal("HELLO.TXT not found")
}

func TestFromPSIDataError(t *testing.T) {
	var stream bytes.Buffer
	writePSISample(t, &stream)

	di, err := diskimage.FromPSI(&stream)
	if err != nil {
		t.Fatalf("FromPSI: %v", err)
	}
	n, err := di.Read(0, 0, 1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != -1 {
		t.Fatalf("Read() = %d, want -1 for a data-error sector", n)
	}
	if len(di.Volumes()) != 0 {
		t.Fatal("Volumes() should be empty until BuildTables runs")
	}
}
