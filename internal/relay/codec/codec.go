// Package codec provides cycle-safe JSON encoding for the report object
// graph. Tags reference their category and categories reference their
// tags back, so naive recursive marshaling would not terminate. Marshal
// walks the value, drops pointers already on the current traversal path,
// and renders the pruned tree as standard JSON.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Marshal encodes v as JSON, replacing back-references with null.
// Shared but acyclic references are encoded in full at each site.
func Marshal(v interface{}) ([]byte, error) {
	tree, err := sanitize(reflect.ValueOf(v), make(map[uintptr]struct{}))
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

func sanitize(v reflect.Value, path map[uintptr]struct{}) (interface{}, error) {
	if !v.IsValid() {
		return nil, nil
	}

	// Types with custom JSON encoding (time.Time and friends) cannot hold
	// references into the report graph; use their own marshaler.
	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return nil, nil
		}
		raw, err := v.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}
	if v.CanAddr() && v.Addr().Type().Implements(marshalerType) {
		raw, err := v.Addr().Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		if v.Kind() == reflect.Ptr {
			addr := v.Pointer()
			if _, seen := path[addr]; seen {
				return nil, nil // back-reference
			}
			path[addr] = struct{}{}
			defer delete(path, addr)
		}
		return sanitize(v.Elem(), path)

	case reflect.Struct:
		out := make(map[string]interface{}, v.NumField())
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			name, omitempty, skip := parseTag(field)
			if skip {
				continue
			}
			fv := v.Field(i)
			if omitempty && fv.IsZero() {
				continue
			}
			enc, err := sanitize(fv, path)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			out[name] = enc
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		addr := v.Pointer()
		if _, seen := path[addr]; seen {
			return nil, nil
		}
		path[addr] = struct{}{}
		defer delete(path, addr)
		fallthrough
	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			enc, err := sanitize(v.Index(i), path)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		addr := v.Pointer()
		if _, seen := path[addr]; seen {
			return nil, nil
		}
		path[addr] = struct{}{}
		defer delete(path, addr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			enc, err := sanitize(iter.Value(), path)
			if err != nil {
				return nil, err
			}
			out[key] = enc
		}
		return out, nil

	default:
		return v.Interface(), nil
	}
}

func parseTag(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}
