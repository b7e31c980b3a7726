package memstore

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jacentio/origami/store"
)

func encode(rec store.Record) ([]byte, error) {
	b, err := msgpack.Marshal(map[string]any(rec))
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// decode returns a fresh record. Integers come back as int64 or uint64 and
// nested maps as map[string]any.
func decode(b []byte) (store.Record, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return store.Record(m), nil
}
