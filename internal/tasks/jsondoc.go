package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// object is a JSON object that keeps its key order, so rewritten config files
// only differ where something was actually removed.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

func (o *object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *object) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *object) Len() int {
	return len(o.keys)
}

// Object returns the nested object stored under key.
func (o *object) Object(key string) (*object, bool) {
	v, ok := o.values[key]
	if !ok {
		return nil, false
	}
	obj, ok := v.(*object)
	return obj, ok
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRaw(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeRaw(&buf, o.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeRaw encodes v without HTML escaping and without the trailing newline.
func writeRaw(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// decodeDocument parses a JSON document, keeping object key order.
func decodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// decodeObject parses a document whose top level must be an object.
func decodeObject(data []byte) (*object, error) {
	v, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*object)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := newObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return t, nil
	}
}

// encodeDocument renders v with two-space indentation and a trailing newline.
func encodeDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// prune removes empty objects, arrays and strings below v and returns the
// dotted paths it removed.
func prune(v any, prefix string) []string {
	return pruneExcept(v, prefix, nil)
}

// pruneExcept is prune but leaves the dotted paths in keep in place, even
// when they end up empty.
func pruneExcept(v any, prefix string, keep map[string]bool) []string {
	var removed []string
	switch t := v.(type) {
	case *object:
		for _, k := range t.Keys() {
			child := t.values[k]
			path := joinPath(prefix, k)
			removed = append(removed, pruneExcept(child, path, keep)...)
			if isEmpty(t.values[k]) && !keep[path] {
				t.Delete(k)
				removed = append(removed, path)
			}
		}
	case []any:
		for i, child := range t {
			removed = append(removed, pruneExcept(child, fmt.Sprintf("%s[%d]", prefix, i), keep)...)
		}
	}
	return removed
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case *object:
		return t.Len() == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	default:
		return false
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
