// Package redact rewrites outgoing response values for the viewer's roles.
// Anything implementing Redactable is replaced by the view it returns; the
// walker descends into maps, slices, arrays, pointers, interfaces and
// struct fields so a patient nested anywhere in a response body is covered.
package redact

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// Redactable is implemented by values whose JSON form depends on who is
// looking.
type Redactable interface {
	Redact(roles model.RoleSet) any
}

var (
	redactableType = reflect.TypeOf((*Redactable)(nil)).Elem()
	marshalerType  = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textType       = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Apply returns v with every Redactable replaced by its view for roles.
// A struct holding a Redactable somewhere below it is rewritten into a map
// keyed by its JSON field names; other structs are returned unchanged.
func Apply(roles model.RoleSet, v any) any {
	if v == nil {
		return nil
	}
	return walk(roles, reflect.ValueOf(v))
}

func walk(roles model.RoleSet, v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Type().Implements(redactableType) {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			return nil
		}
		return v.Interface().(Redactable).Redact(roles)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		elem := v.Elem()
		if v.Kind() == reflect.Pointer && !needsWalk(elem.Type()) {
			return v.Interface()
		}
		return walk(roles, elem)

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String || !needsWalk(v.Type().Elem()) {
			return v.Interface()
		}
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = walk(roles, iter.Value())
		}
		return out

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 || !needsWalk(v.Type().Elem()) {
			return v.Interface()
		}
		if v.IsNil() {
			return []any(nil)
		}
		fallthrough
	case reflect.Array:
		if !needsWalk(v.Type().Elem()) {
			return v.Interface()
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = walk(roles, v.Index(i))
		}
		return out

	case reflect.Struct:
		if marshalsItself(v.Type()) || !needsWalk(v.Type()) {
			return v.Interface()
		}
		out := make(map[string]any, v.NumField())
		walkFields(roles, v, out)
		return out
	}
	return v.Interface()
}

// walkFields copies the JSON-visible fields of struct v into out the way
// encoding/json names them. Fields of embedded structs are promoted unless
// an outer field already claimed the name. Values reflect cannot hand out,
// such as fields promoted through an unexported embedded struct, are left
// out.
func walkFields(roles model.RoleSet, v reflect.Value, out map[string]any) {
	t := v.Type()
	var embedded []reflect.Value
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if sf.Anonymous && name == "" {
			for fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					break
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				embedded = append(embedded, fv)
				continue
			}
		}
		if !sf.IsExported() || !fv.CanInterface() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if hasOpt(opts, "omitempty") && isEmpty(fv) {
			continue
		}
		out[name] = walk(roles, fv)
	}
	for _, ev := range embedded {
		inner := make(map[string]any)
		walkFields(roles, ev, inner)
		for k, val := range inner {
			if _, taken := out[k]; !taken {
				out[k] = val
			}
		}
	}
}

// marshalsItself reports whether t has its own JSON or text encoding, which
// a field-by-field rewrite would bypass.
func marshalsItself(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(marshalerType) || pt.Implements(marshalerType) ||
		t.Implements(textType) || pt.Implements(textType)
}

func hasOpt(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

// isEmpty matches encoding/json's omitempty test.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}

// needsWalk reports whether values of t may contain a Redactable.
func needsWalk(t reflect.Type) bool {
	return containsRedactable(t, map[reflect.Type]bool{})
}

func containsRedactable(t reflect.Type, seen map[reflect.Type]bool) bool {
	if t.Implements(redactableType) {
		return true
	}
	if seen[t] {
		return false
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return containsRedactable(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() && !sf.Anonymous {
				continue
			}
			if sf.Tag.Get("json") == "-" {
				continue
			}
			if containsRedactable(sf.Type, seen) {
				return true
			}
		}
	}
	return false
}
