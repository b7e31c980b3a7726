// Package stream turns DynamoDB Streams events into resource changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/origami/dynamo"
	"github.com/jacentio/origami/store"
)

// Kind classifies a change.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted" // soft delete: deletedAt newly set
	KindRemoved Kind = "removed" // item removed from the table
)

// Change is one stream record materialized as resources.
type Change struct {
	Kind    Kind
	Model   string
	EventID string

	// Key is the item key in SDK form, ready for follow-up table calls.
	Key map[string]types.AttributeValue

	// Resource is built from the new image, or from the old image when the
	// item was removed.
	Resource *store.Resource

	// Previous is built from the old image. It is nil for created items and
	// for streams that do not carry old images.
	Previous *store.Resource
}

// Subscriber receives each change. An error stops the batch.
type Subscriber func(ctx context.Context, c Change) error

// Handler processes DynamoDB stream events for registered models.
type Handler struct {
	store  *store.Store
	tables map[string]string
	fn     Subscriber
	logger *slog.Logger
}

// NewHandler creates a new stream handler. tables maps table names to model
// names; see TablesFor.
func NewHandler(s *store.Store, tables map[string]string, fn Subscriber, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		tables: tables,
		fn:     fn,
		logger: logger,
	}
}

// TablesFor maps the dynamo table of every model registered in s to its model.
func TablesFor(s *store.Store, prefix string) map[string]string {
	names := s.Models().Names()
	tables := make(map[string]string, len(names))
	for _, name := range names {
		tables[dynamo.TableName(prefix, name)] = name
	}
	return tables
}

// HandleStream processes DynamoDB stream events.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleStream(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	table := TableFromARN(record.EventSourceArn)
	model, ok := h.tables[table]
	if !ok {
		h.logger.Debug("skipping record for unmapped table", "table", table, "eventID", record.EventID)
		return nil
	}

	newImage, err := ConvertImage(record.Change.NewImage)
	if err != nil {
		return fmt.Errorf("convert new image: %w", err)
	}
	oldImage, err := ConvertImage(record.Change.OldImage)
	if err != nil {
		return fmt.Errorf("convert old image: %w", err)
	}

	var kind Kind
	current := newImage
	switch record.EventName {
	case "INSERT":
		kind = KindCreated
	case "MODIFY":
		kind = KindUpdated
		if !store.IsDeleted(oldImage) && store.IsDeleted(newImage) {
			kind = KindDeleted
		}
	case "REMOVE":
		kind = KindRemoved
		current = oldImage
	default:
		return nil
	}

	// KEYS_ONLY streams carry no images.
	if len(current) == 0 {
		if current, err = ConvertImage(record.Change.Keys); err != nil {
			return fmt.Errorf("convert keys: %w", err)
		}
	}

	change := Change{
		Kind:    kind,
		Model:   model,
		EventID: record.EventID,
		Key:     ConvertStreamKey(record.Change.Keys),
	}
	if change.Resource, err = store.NewResource(h.store, model, current, store.Options{}); err != nil {
		return fmt.Errorf("materialize %s: %w", model, err)
	}
	if len(oldImage) > 0 && kind != KindRemoved {
		if change.Previous, err = store.NewResource(h.store, model, oldImage, store.Options{}); err != nil {
			return fmt.Errorf("materialize previous %s: %w", model, err)
		}
	}

	h.logger.Info("processing change",
		"model", model,
		"kind", kind,
		"id", change.Resource.ID(),
	)

	if h.fn == nil {
		return nil
	}
	return h.fn(ctx, change)
}

// TableFromARN extracts the table name from a table or stream ARN:
// arn:aws:dynamodb:region:account:table/posts/stream/2024-01-01T00:00:00.000
func TableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}
