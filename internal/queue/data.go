package queue

import (
	"bytes"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Data is the working payload of a job: a string-keyed mapping that keeps
// keys in insertion order. Decoding keeps the key order of the JSON object.
// The zero value is an empty mapping ready to use.
type Data struct {
	keys   []string
	values map[string]any
}

func NewData() *Data {
	return &Data{values: make(map[string]any)}
}

// Set stores v under key. An existing key keeps its position.
func (d *Data) Set(key string, v any) *Data {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
	return d
}

func (d *Data) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *Data) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

func (d *Data) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order. The slice is a copy.
func (d *Data) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Data) Len() int {
	return len(d.keys)
}

// String returns the value under key when it is a string.
func (d *Data) String(key string) (string, bool) {
	s, ok := d.values[key].(string)
	return s, ok
}

// Int returns the value under key as an int. Decoded JSON numbers are
// json.Number; they convert only when they carry no fraction.
func (d *Data) Int(key string) (int, bool) {
	switch v := d.values[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func (d *Data) Float(key string) (float64, bool) {
	switch v := d.values[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (d *Data) Bool(key string) (bool, bool) {
	b, ok := d.values[key].(bool)
	return b, ok
}

// Map returns a shallow copy as a plain map.
func (d *Data) Map() map[string]any {
	m := make(map[string]any, len(d.keys))
	for _, k := range d.keys {
		m[k] = d.values[k]
	}
	return m
}

// Clone returns a shallow copy that keeps the key order.
func (d *Data) Clone() *Data {
	c := NewData()
	for _, k := range d.keys {
		c.Set(k, d.values[k])
	}
	return c
}

// Replace overwrites the whole mapping with the contents of other.
func (d *Data) Replace(other *Data) {
	d.keys = nil
	d.values = make(map[string]any)
	if other == nil {
		return
	}
	for _, k := range other.keys {
		d.Set(k, other.values[k])
	}
}

func (d *Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("queue: encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, replacing the current contents.
// Top-level key order is kept; nested objects decode to map[string]any.
// Numbers stay json.Number so integers beyond 2^53 survive a requeue.
func (d *Data) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("queue: payload is not a JSON object")
	}

	out := NewData()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("queue: unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	d.keys, d.values = out.keys, out.values
	return nil
}
