package nft

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is the decoded, open-ended attribute map of an NFT.
type Metadata map[string]Value

type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindRaw
)

// Value is one metadata field. Shapes other than scalars and lists are kept
// verbatim as raw JSON so unknown fields survive a store round trip.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
	raw  json.RawMessage
}

func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Strings builds a list value out of plain strings.
func Strings(items []string) Value {
	list := make([]Value, 0, len(items))
	for _, s := range items {
		list = append(list, String(s))
	}
	return List(list...)
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Items() ([]Value, bool) { return v.list, v.kind == KindList }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindRaw:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty metadata value")
	}
	switch data[0] {
	case 'n':
		*v = Value{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = List(items...)
	case '{':
		if !json.Valid(data) {
			return fmt.Errorf("invalid metadata object")
		}
		*v = Value{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}
