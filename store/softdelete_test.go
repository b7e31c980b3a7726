package store_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/origami/store"
)

func TestIsDeleted(t *testing.T) {
	var zero time.Time
	now := time.Now()

	tests := []struct {
		name     string
		rec      store.Record
		expected bool
	}{
		{"no deletedAt", store.Record{}, false},
		{"nil deletedAt", store.Record{"deletedAt": nil}, false},
		{"zero time", store.Record{"deletedAt": zero}, false},
		{"nil time pointer", store.Record{"deletedAt": (*time.Time)(nil)}, false},
		{"time", store.Record{"deletedAt": now}, true},
		{"time pointer", store.Record{"deletedAt": &now}, true},
		{"string timestamp", store.Record{"deletedAt": "2024-01-01T00:00:00Z"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.IsDeleted(tt.rec); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNotDeleted(t *testing.T) {
	q := store.Query{"title": "x", "deletedAt": "yesterday"}

	got := store.NotDeleted(q)

	if diff := cmp.Diff(store.Query{"title": "x", "deletedAt": nil}, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	if q["deletedAt"] != "yesterday" {
		t.Error("expected input query untouched")
	}
	if diff := cmp.Diff(store.Query{"deletedAt": nil}, store.NotDeleted(nil)); diff != "" {
		t.Errorf("nil query mismatch (-want +got):\n%s", diff)
	}
}

func TestMatches(t *testing.T) {
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := store.Record{"id": "1", "count": int64(3), "tags": []any{"a"}, "at": when, "deletedAt": nil}

	tests := []struct {
		name     string
		q        store.Query
		expected bool
	}{
		{"empty query", store.Query{}, true},
		{"equal string", store.Query{"id": "1"}, true},
		{"different string", store.Query{"id": "2"}, false},
		{"number across types", store.Query{"count": 3}, true},
		{"float number", store.Query{"count": 3.0}, true},
		{"missing field", store.Query{"name": "x"}, false},
		{"nil matches nil", store.Query{"deletedAt": nil}, true},
		{"nil matches missing", store.Query{"parent": nil}, true},
		{"nil vs value", store.Query{"id": nil}, false},
		{"deep equal", store.Query{"tags": []any{"a"}}, true},
		{"time equal", store.Query{"at": when.In(time.FixedZone("x", 3600))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.Matches(rec, tt.q); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestMatches_DeletedRecords(t *testing.T) {
	active := store.Record{"id": "1", "deletedAt": time.Time{}}
	deleted := store.Record{"id": "2", "deletedAt": time.Now()}

	q := store.NotDeleted(nil)
	if !store.Matches(active, q) {
		t.Error("expected zero deletedAt to count as active")
	}
	if store.Matches(deleted, q) {
		t.Error("expected deleted record excluded")
	}
}
