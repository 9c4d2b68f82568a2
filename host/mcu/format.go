package mcu

import (
	"fmt"
	"strings"

	"gopdac/protocol"
)

// ParamType is the wire encoding of one message parameter
type ParamType uint8

const (
	ParamUint  ParamType = iota // %u %hu %c
	ParamInt                    // %i %hi
	ParamBytes                  // %s %*s %.*s
)

// Param is one "name=%x" field of a message format
type Param struct {
	Name string
	Type ParamType
}

// MessageFormat describes a command or response as listed in the
// dictionary, e.g. "dac_write oid=%c value=%c".
type MessageFormat struct {
	ID     int
	Name   string
	Params []Param
	Raw    string
}

// ParseFormat parses a dictionary format string
func ParseFormat(id int, format string) (*MessageFormat, error) {
	fields := strings.Fields(format)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message format")
	}
	mf := &MessageFormat{ID: id, Name: fields[0], Raw: format}
	for _, field := range fields[1:] {
		eq := strings.IndexByte(field, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%s: malformed parameter %q", mf.Name, field)
		}
		var typ ParamType
		switch field[eq+1:] {
		case "%u", "%hu", "%c", "%lu":
			typ = ParamUint
		case "%i", "%hi", "%li":
			typ = ParamInt
		case "%s", "%*s", "%.*s":
			typ = ParamBytes
		default:
			return nil, fmt.Errorf("%s: unsupported conversion in %q", mf.Name, field)
		}
		mf.Params = append(mf.Params, Param{Name: field[:eq], Type: typ})
	}
	return mf, nil
}

// Encode builds the payload of a command: its id followed by args in
// parameter order. Integer params take any Go integer type, byte params
// take []byte or string.
func (mf *MessageFormat) Encode(args ...interface{}) ([]byte, error) {
	if len(args) != len(mf.Params) {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", mf.Name, len(mf.Params), len(args))
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(mf.ID))
	for i, p := range mf.Params {
		switch p.Type {
		case ParamBytes:
			switch v := args[i].(type) {
			case []byte:
				protocol.EncodeVLQBytes(out, v)
			case string:
				protocol.EncodeVLQString(out, v)
			default:
				return nil, fmt.Errorf("%s: %s must be bytes, got %T", mf.Name, p.Name, args[i])
			}
		default:
			v, err := toInt64(args[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			if p.Type == ParamInt {
				protocol.EncodeVLQInt(out, int32(v))
			} else {
				protocol.EncodeVLQUint(out, uint32(v))
			}
		}
	}
	return out.Result(), nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("want an integer, got %T", v)
}

// Response is a decoded MCU message
type Response struct {
	Name string
	Args map[string]int64
	Data map[string][]byte
}

// Uint returns an integer argument, zero when absent
func (r *Response) Uint(name string) uint32 {
	return uint32(r.Args[name])
}

// Decode consumes the arguments of one message from data. The message id
// must already have been consumed.
func (mf *MessageFormat) Decode(data *[]byte) (*Response, error) {
	r := &Response{Name: mf.Name, Args: make(map[string]int64, len(mf.Params))}
	for _, p := range mf.Params {
		switch p.Type {
		case ParamBytes:
			b, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			if r.Data == nil {
				r.Data = make(map[string][]byte)
			}
			r.Data[p.Name] = append([]byte(nil), b...)
		case ParamInt:
			v, err := protocol.DecodeVLQInt(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			r.Args[p.Name] = int64(v)
		default:
			v, err := protocol.DecodeVLQUint(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", mf.Name, p.Name, err)
			}
			r.Args[p.Name] = int64(v)
		}
	}
	return r, nil
}

func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	for k, v := range r.Args {
		fmt.Fprintf(&sb, " %s=%d", k, v)
	}
	for k, v := range r.Data {
		fmt.Fprintf(&sb, " %s=%x", k, v)
	}
	return sb.String()
}
