package diskjson_test

import (
	"testing"

	"github.com/pcediskimg/diskimage/diskjson"
)

func TestParseAnyLegacyMigratesFieldsAndPattern(t *testing.T) {
	raw := []byte(`[[[{"cylinder":1,"head":0,"sector":3,"length":512,"data":[1,2],"pattern":9}]]]`)
	doc, err := diskjson.ParseAny(raw)
	if err != nil {
		t.Fatal(err)
	}
	s := doc.DiskData[0][0][0]
	if s.C != 1 || s.H != 0 || s.ID != 3 || s.Length != 512 {
		t.Fatalf("migrated sector = %+v, want C=1 H=0 ID=3 Length=512", s)
	}
	if len(s.Data) != 3 || s.Data[2] != 9 {
		t.Fatalf("expected pattern appended as final data word, got %v", s.Data)
	}
}

func TestParseAnyExtended(t *testing.T) {
	raw := []byte(`{"imageInfo":{"type":"CHS","checksum":0,"cylinders":40,"heads":1,"trackDefault":8,"sectorDefault":512,"diskSize":163840},"diskData":[[[{"c":0,"h":0,"id":1,"length":512,"data":[0]}]]]}`)
	doc, err := diskjson.ParseAny(raw)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ImageInfo.Cylinders != 40 {
		t.Fatalf("ImageInfo.Cylinders = %d, want 40", doc.ImageInfo.Cylinders)
	}
	if doc.DiskData[0][0][0].ID != 1 {
		t.Fatalf("diskData sector id = %d, want 1", doc.DiskData[0][0][0].ID)
	}
}

func TestParseAnyRejectsGarbage(t *testing.T) {
	if _, err := diskjson.ParseAny([]byte("not json")); err == nil {
		t.Fatal("expected an error for non-JSON input")
	}
}
