package payloaddecoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type ValueKind uint8

const (
	Null ValueKind = iota
	Bool
	Number
	String
	Object
	Array
)

func (k ValueKind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "null"
	}
}

// Value is a parsed JSON document that keeps object members in the order
// they were encountered, duplicates included.
type Value struct {
	Kind    ValueKind
	Bool    bool
	Number  json.Number
	String  string
	Members []Member
	Items   []Value
}

type Member struct {
	Key   string
	Value Value
}

// Get returns the first member named key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Len is the number of direct children.
func (v Value) Len() int {
	switch v.Kind {
	case Object:
		return len(v.Members)
	case Array:
		return len(v.Items)
	}
	return 0
}

// Walk visits v and its descendants depth first. path holds object keys and
// array indexes from the root. Returning false from fn skips the children of
// the visited node.
func (v Value) Walk(fn func(path []string, node Value) bool) {
	v.walk(nil, fn)
}

func (v Value) walk(path []string, fn func([]string, Value) bool) {
	if !fn(path, v) {
		return
	}
	switch v.Kind {
	case Object:
		for _, m := range v.Members {
			m.Value.walk(append(path[:len(path):len(path)], m.Key), fn)
		}
	case Array:
		for i, item := range v.Items {
			item.walk(append(path[:len(path):len(path)], strconv.Itoa(i)), fn)
		}
	}
}

// MarshalJSON writes the compact form, preserving member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case Number:
		buf.WriteString(v.Number.String())
	case String:
		b, err := json.Marshal(v.String)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Object:
		buf.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

// ParseJSON parses exactly one JSON value from data.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return Value{}, fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
		}
		return Value{}, err
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Value{Kind: Null}, nil
	case bool:
		return Value{Kind: Bool, Bool: t}, nil
	case json.Number:
		return Value{Kind: Number, Number: t}, nil
	case string:
		return Value{Kind: String, String: t}, nil
	case json.Delim:
		switch t {
		case '{':
			obj := Value{Kind: Object, Members: []Member{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyTok)
				}
				child, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: child})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Value{Kind: Array, Items: []Value{}}
			for dec.More() {
				child, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.Items = append(arr.Items, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}
