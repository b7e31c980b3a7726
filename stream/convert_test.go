package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/origami/store"
)

// --- ConvertImage Tests ---

func TestConvertImage(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id":        events.NewStringAttribute("p1"),
		"views":     events.NewNumberAttribute("42"),
		"score":     events.NewNumberAttribute("4.5"),
		"draft":     events.NewBooleanAttribute(true),
		"deletedAt": events.NewNullAttribute(),
		"raw":       events.NewBinaryAttribute([]byte{1, 2}),
		"tags":      events.NewStringSetAttribute([]string{"go", "aws"}),
		"ranks":     events.NewNumberSetAttribute([]string{"1", "2.5"}),
		"blobs":     events.NewBinarySetAttribute([][]byte{{3}}),
		"comments": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
				"id":   events.NewStringAttribute("c1"),
				"body": events.NewStringAttribute("hi"),
			}),
		}),
	}

	rec, err := ConvertImage(image)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := store.Record{
		"id":        "p1",
		"views":     int64(42),
		"score":     4.5,
		"draft":     true,
		"deletedAt": nil,
		"raw":       []byte{1, 2},
		"tags":      []string{"go", "aws"},
		"ranks":     []any{int64(1), 2.5},
		"blobs":     [][]byte{{3}},
		"comments":  []any{map[string]any{"id": "c1", "body": "hi"}},
	}
	if diff := cmp.Diff(expected, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertImage_Nil(t *testing.T) {
	rec, err := ConvertImage(nil)
	if err != nil || rec != nil {
		t.Errorf("expected nil, nil, got %v, %v", rec, err)
	}
}

func TestConvertImage_BadNumber(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"views": events.NewNumberAttribute("many"),
	}
	if _, err := ConvertImage(image); err == nil {
		t.Error("expected parse error")
	}
}

// --- TableFromARN Tests ---

func TestTableFromARN(t *testing.T) {
	tests := []struct {
		name     string
		arn      string
		expected string
	}{
		{"stream arn", "arn:aws:dynamodb:us-east-1:123456789012:table/posts/stream/2024-01-01T00:00:00.000", "posts"},
		{"table arn", "arn:aws:dynamodb:us-east-1:123456789012:table/app_users", "app_users"},
		{"not a table", "arn:aws:sqs:us-east-1:123456789012:queue", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableFromARN(tt.arn); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// --- ConvertStreamKey Tests ---

func TestConvertStreamKey(t *testing.T) {
	streamKey := map[string]events.DynamoDBAttributeValue{
		"id":      events.NewStringAttribute("test-id"),
		"version": events.NewNumberAttribute("42"),
		"hash":    events.NewBinaryAttribute([]byte{1, 2, 3}),
		"flag":    events.NewBooleanAttribute(true),
	}

	key := ConvertStreamKey(streamKey)

	if v, ok := key["id"].(*types.AttributeValueMemberS); !ok || v.Value != "test-id" {
		t.Error("expected id to be 'test-id'")
	}
	if v, ok := key["version"].(*types.AttributeValueMemberN); !ok || v.Value != "42" {
		t.Error("expected version to be '42'")
	}
	if v, ok := key["hash"].(*types.AttributeValueMemberB); !ok || len(v.Value) != 3 {
		t.Error("expected hash to be 3 bytes")
	}
	if _, ok := key["flag"]; ok {
		t.Error("expected non-key attribute types to be dropped")
	}
}

func TestConvertStreamKey_Empty(t *testing.T) {
	key := ConvertStreamKey(nil)
	if key == nil || len(key) != 0 {
		t.Errorf("expected empty non-nil key, got %v", key)
	}
}
