package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

type dictionaryJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func newTestDictionary() *Dictionary {
	reg := NewCommandRegistry()
	reg.Register("identify_response", "offset=%u data=%*s", nil)
	reg.Register("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })
	reg.Register("dac_write", "oid=%c value=%c", func(data *[]byte) error { return nil })

	d := NewDictionary(reg)
	d.AddConstant("CLOCK_FREQ", uint32(12000000))
	d.AddConstant("MCU", "test")
	d.AddEnumeration("dac_transfer_mode", TransferModeNames)
	d.AddEnumeration("sparse", []string{"a", "", "c"})
	return d
}

func TestDictionaryJSON(t *testing.T) {
	d := newTestDictionary()

	var got dictionaryJSON
	if err := json.Unmarshal(d.Generate(), &got); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, d.Generate())
	}
	if got.Version != "gopdac-0.1.0" {
		t.Errorf("Version = %q", got.Version)
	}
	if got.Config["CLOCK_FREQ"] != "12000000" || got.Config["MCU"] != "test" {
		t.Errorf("Config = %v", got.Config)
	}
	if got.Responses["identify_response offset=%u data=%*s"] != 0 {
		t.Errorf("identify_response must be id 0: %v", got.Responses)
	}
	if got.Commands["identify offset=%u count=%c"] != 1 || got.Commands["dac_write oid=%c value=%c"] != 2 {
		t.Errorf("Commands = %v", got.Commands)
	}
	if got.Enumerations["dac_transfer_mode"]["circular"] != 1 {
		t.Errorf("Enumerations = %v", got.Enumerations)
	}
	if _, ok := got.Enumerations["sparse"][""]; ok || got.Enumerations["sparse"]["c"] != 2 {
		t.Errorf("Sparse enumeration = %v", got.Enumerations["sparse"])
	}
}

func TestDictionaryCompressedChunks(t *testing.T) {
	d := newTestDictionary()
	plain := append([]byte(nil), d.Generate()...)
	d.BuildDictionary()

	// Reassemble the way the host does, in identify-sized chunks
	var compressed []byte
	for offset := uint32(0); ; {
		chunk := d.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		compressed = append(compressed, chunk...)
		offset += uint32(len(chunk))
	}

	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Not a zlib stream: %v", err)
	}
	inflated, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Inflate failed: %v", err)
	}
	if !bytes.Equal(inflated, plain) {
		t.Errorf("Inflated dictionary differs from JSON")
	}

	if chunk := d.GetChunk(uint32(len(compressed))+10, 40); len(chunk) != 0 {
		t.Errorf("Chunk past end = %v", chunk)
	}
}
