package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strconv"
)

// Dictionary is the command/response table the firmware reports
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`

	commands  map[string]*MessageFormat
	responses map[int]*MessageFormat
}

// isZlib checks for a zlib stream header (deflate, valid FCHECK)
func isZlib(data []byte) bool {
	if len(data) < 2 || data[0]&0x0F != 8 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// ParseDictionary decodes raw identify data, inflating it first when the
// firmware sent it compressed.
func ParseDictionary(raw []byte) (*Dictionary, error) {
	data := raw
	if isZlib(raw) {
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed dictionary: %w", err)
		}
		data, err = ioutil.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to inflate dictionary: %w", err)
		}
	}

	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	d.commands = make(map[string]*MessageFormat, len(d.Commands))
	for format, id := range d.Commands {
		mf, err := ParseFormat(id, format)
		if err != nil {
			return nil, err
		}
		d.commands[mf.Name] = mf
	}
	d.responses = make(map[int]*MessageFormat, len(d.Responses))
	for format, id := range d.Responses {
		mf, err := ParseFormat(id, format)
		if err != nil {
			return nil, err
		}
		d.responses[id] = mf
	}
	return d, nil
}

// Command looks up a command format by name
func (d *Dictionary) Command(name string) (*MessageFormat, error) {
	mf, ok := d.commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", name)
	}
	return mf, nil
}

// Response looks up a response format by id
func (d *Dictionary) Response(id int) (*MessageFormat, bool) {
	mf, ok := d.responses[id]
	return mf, ok
}

// EnumValue returns the value of name in an enumeration
func (d *Dictionary) EnumValue(enum, name string) (int, error) {
	values, ok := d.Enumerations[enum]
	if !ok {
		return 0, fmt.Errorf("unknown enumeration: %s", enum)
	}
	v, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("%s has no value %q", enum, name)
	}
	return v, nil
}

// EnumName is the inverse of EnumValue. Unknown values print as numbers.
func (d *Dictionary) EnumName(enum string, value int) string {
	for name, v := range d.Enumerations[enum] {
		if v == value {
			return name
		}
	}
	return strconv.Itoa(value)
}

// ConfigUint parses a numeric config constant
func (d *Dictionary) ConfigUint(name string) (uint32, error) {
	s, ok := d.Config[name]
	if !ok {
		return 0, fmt.Errorf("dictionary has no constant %s", name)
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("constant %s: %w", name, err)
	}
	return uint32(v), nil
}

// Print writes a summary of the dictionary
func (d *Dictionary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	if d.BuildVersions != "" {
		fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)
	}

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	printByID(w, d.Commands)
	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	printByID(w, d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		names := make([]string, 0, len(d.Enumerations))
		for name := range d.Enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			values := d.Enumerations[name]
			byValue := make([]string, 0, len(values))
			for v := range values {
				byValue = append(byValue, v)
			}
			sort.Slice(byValue, func(i, j int) bool { return values[byValue[i]] < values[byValue[j]] })
			fmt.Fprintf(w, "  %s: %v\n", name, byValue)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printByID(w io.Writer, m map[string]int) {
	formats := make([]string, 0, len(m))
	for f := range m {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return m[formats[i]] < m[formats[j]] })
	for _, f := range formats {
		fmt.Fprintf(w, "  [%d] %s\n", m[f], f)
	}
}
