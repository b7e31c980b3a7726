package store

import (
	"reflect"
	"time"
)

// cloneValue deep copies the container types records are made of, keeping
// their concrete types. Resources are replaced by their ToObject snapshot.
func cloneValue(v any) any {
	switch x := v.(type) {
	case *Resource:
		if x == nil {
			return nil
		}
		return x.ToObject()
	case []*Resource:
		out := make([]any, len(x))
		for i, r := range x {
			if r != nil {
				out[i] = r.ToObject()
			}
		}
		return out
	case Record:
		if x == nil {
			return x
		}
		out := make(Record, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case map[string]any:
		if x == nil {
			return x
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []Record:
		if x == nil {
			return x
		}
		out := make([]Record, len(x))
		for i, e := range x {
			out[i], _ = cloneValue(e).(Record)
		}
		return out
	case []map[string]any:
		if x == nil {
			return x
		}
		out := make([]map[string]any, len(x))
		for i, e := range x {
			out[i], _ = cloneValue(e).(map[string]any)
		}
		return out
	case []string:
		if x == nil {
			return x
		}
		return append([]string(nil), x...)
	case []byte:
		if x == nil {
			return x
		}
		return append([]byte(nil), x...)
	case *time.Time:
		if x == nil {
			return x
		}
		t := *x
		return &t
	default:
		return cloneReflect(v)
	}
}

// cloneReflect copies maps and slices of any other element type. Elements
// whose clone changes type are kept as is.
func cloneReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value(), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i), rv.Type().Elem()))
		}
		return out.Interface()
	default:
		return v
	}
}

func cloneElem(e reflect.Value, typ reflect.Type) reflect.Value {
	if !e.CanInterface() {
		return e
	}
	c := reflect.ValueOf(cloneValue(e.Interface()))
	if !c.IsValid() {
		return reflect.Zero(typ)
	}
	if !c.Type().AssignableTo(typ) {
		return e
	}
	return c
}
