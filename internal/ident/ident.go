// Package ident provides record identity keys and shard selection.
package ident

import (
	"fmt"
	"hash/fnv"
)

// Key returns the identity of a record within a model.
// Records with an id are keyed by it ("User#42"); records without one are
// keyed by the address of their map, so two reads of the same id collide but
// two distinct anonymous records do not.
func Key(model string, rec map[string]any) string {
	if id, ok := rec["id"]; ok && id != nil && id != "" {
		return fmt.Sprintf("%s#%v", model, id)
	}
	return fmt.Sprintf("%s@%p", model, rec)
}

// Shard maps key onto one of numShards buckets.
// With numShards<=1, every key goes to shard 0.
func Shard(key string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}
