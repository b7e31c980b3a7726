package store

import (
	"reflect"
	"time"
)

// DeletedAtField holds the soft delete timestamp. Records where it is unset or
// nil are active.
const DeletedAtField = "deletedAt"

// IsDeleted checks if a record carries a soft delete timestamp.
func IsDeleted(rec Record) bool {
	v, ok := rec[DeletedAtField]
	if !ok || v == nil {
		return false
	}
	if t, isTime := v.(time.Time); isTime {
		return !t.IsZero()
	}
	if t, isTime := v.(*time.Time); isTime {
		return t != nil && !t.IsZero()
	}
	return true
}

// NotDeleted returns a copy of q that excludes soft deleted records.
// Any deletedAt value in q is overwritten.
func NotDeleted(q Query) Query {
	out := make(Query, len(q)+1)
	for k, v := range q {
		out[k] = v
	}
	out[DeletedAtField] = nil
	return out
}

// Matches reports whether rec satisfies every equality in q. A nil query value
// matches a missing or nil field; numbers compare by value across types.
func Matches(rec Record, q Query) bool {
	for k, want := range q {
		got, ok := rec[k]
		if want == nil {
			if ok && got != nil {
				if k == DeletedAtField && !IsDeleted(rec) {
					continue
				}
				return false
			}
			continue
		}
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}
