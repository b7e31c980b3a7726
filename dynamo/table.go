package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/origami/store"
)

// LimitParam caps the number of records Find returns when set in
// store.Options.Params. Update and Delete ignore it and touch every match.
const LimitParam = "limit"

// ConsistentReadParam requests strongly consistent reads when set to true in
// store.Options.Params.
const ConsistentReadParam = "consistentRead"

// Table is the backend of one model. It implements store.Backend and store.IDFinder.
type Table struct {
	driver *Driver
	model  *store.Model
	name   string
	logger *slog.Logger
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Create implements store.Backend. Items are written only when no item with
// the same id exists; unique properties are guarded by constraint records in
// Config.UniqueTable.
func (t *Table) Create(ctx context.Context, rec store.Record, opts store.Options) (store.Record, error) {
	client, err := t.driver.api()
	if err != nil {
		return nil, err
	}

	out := make(store.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if id, ok := out["id"]; !ok || id == nil || id == "" {
		out["id"] = uuid.NewString()
	}

	item, err := attributevalue.MarshalMap(map[string]any(out))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}

	constraints := t.constraints(out)
	if len(constraints) == 0 {
		_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(t.name),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, t.duplicate("id")
		}
		if err != nil {
			return nil, err
		}
		return unmarshalRecord(item)
	}

	// Entity put first, then one constraint put per unique field.
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(t.name),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	}}
	fields := []string{"id"}
	for _, c := range constraints {
		items = append(items, t.constraintPut(c, fmt.Sprint(out["id"])))
		fields = append(fields, c.field)
	}

	_, err = client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := t.mapCreateTransactionError(err, fields); err != nil {
		return nil, err
	}
	return unmarshalRecord(item)
}

// Find implements store.Backend with a filtered, paginated scan.
func (t *Table) Find(ctx context.Context, q store.Query, opts store.Options) ([]store.Record, error) {
	client, err := t.driver.api()
	if err != nil {
		return nil, err
	}

	filter, err := filterFor(q)
	if err != nil {
		return nil, err
	}
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(t.name),
		ExpressionAttributeNames:  nilIfEmpty(filter.names),
		ExpressionAttributeValues: nilIfEmpty(filter.values),
		ConsistentRead:            consistentRead(opts),
	}
	if filter.expr != "" {
		input.FilterExpression = aws.String(filter.expr)
	}

	limit := limitOf(opts)
	var recs []store.Record
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			rec, err := unmarshalRecord(raw)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
			if limit > 0 && len(recs) == limit {
				return recs, nil
			}
		}
	}
	return recs, nil
}

// FindOne implements store.Backend. Queries keyed by id are answered with
// GetItem; the remaining fields are checked against the item.
func (t *Table) FindOne(ctx context.Context, q store.Query, opts store.Options) (store.Record, error) {
	if id, ok := q["id"].(string); ok && id != "" {
		rec, err := t.FindByID(ctx, id, opts)
		if err != nil || rec == nil {
			return nil, err
		}
		if !store.Matches(rec, q) {
			return nil, nil
		}
		return rec, nil
	}

	recs, err := t.Find(ctx, q, withLimit(opts, 1))
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// FindByID implements store.IDFinder.
func (t *Table) FindByID(ctx context.Context, id string, opts store.Options) (store.Record, error) {
	client, err := t.driver.api()
	if err != nil {
		return nil, err
	}
	result, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            keyOf(id),
		ConsistentRead: consistentRead(opts),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	return unmarshalRecord(result.Item)
}

// Update implements store.Backend. Matched items are updated concurrently,
// bounded by Config.Workers; soft deleted items fail the update condition and
// are reported as nil entries.
func (t *Table) Update(ctx context.Context, q store.Query, set store.Record, opts store.Options) ([]store.Record, error) {
	matched, err := t.Find(ctx, q, withoutLimit(opts))
	if err != nil || len(matched) == 0 {
		return nil, err
	}

	out := make([]store.Record, len(matched))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.driver.config.Workers)

	for i, rec := range matched {
		i, rec := i, rec
		eg.Go(func() error {
			updated, err := t.updateItem(ctx, rec, set)
			if err != nil {
				return err
			}
			out[i] = updated
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	t.logger.Debug("updated items", "table", t.name, "matched", len(matched))
	return out, nil
}

// UpdateOne implements store.Backend.
func (t *Table) UpdateOne(ctx context.Context, q store.Query, set store.Record, opts store.Options) (store.Record, error) {
	rec, err := t.FindOne(ctx, q, opts)
	if err != nil || rec == nil {
		return nil, err
	}
	return t.updateItem(ctx, rec, set)
}

func (t *Table) updateItem(ctx context.Context, rec store.Record, set store.Record) (store.Record, error) {
	if store.IsDeleted(rec) {
		return nil, nil
	}
	client, err := t.driver.api()
	if err != nil {
		return nil, err
	}

	update, err := updateFor(set)
	if err != nil {
		return nil, err
	}
	if update.expr == "" {
		return rec, nil
	}

	id := fmt.Sprint(rec["id"])
	if items, fields := t.constraintChanges(rec, set); len(items) > 0 {
		return t.updateWithConstraints(ctx, client, id, rec, set, update, items, fields)
	}

	result, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       keyOf(id),
		UpdateExpression:          aws.String(update.expr),
		ConditionExpression:       aws.String(updateCondition()),
		ExpressionAttributeNames:  mergeExprNames(update.names, NotDeletedNames()),
		ExpressionAttributeValues: mergeExprValues(update.values, NotDeletedValues()),
		ReturnValues:              types.ReturnValueAllNew,
	})

	// Condition failure: deleted since it was read
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		t.logger.Debug("skipped deleted item", "table", t.name, "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(result.Attributes)
}

// updateWithConstraints applies update together with the constraint record
// changes in one transaction, so a unique value is never held twice.
func (t *Table) updateWithConstraints(ctx context.Context, client API, id string, rec, set store.Record, update expression, items []types.TransactWriteItem, fields []string) (store.Record, error) {
	entity := len(items)
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(t.name),
			Key:                       keyOf(id),
			UpdateExpression:          aws.String(update.expr),
			ConditionExpression:       aws.String(updateCondition()),
			ExpressionAttributeNames:  mergeExprNames(update.names, NotDeletedNames()),
			ExpressionAttributeValues: mergeExprValues(update.values, NotDeletedValues()),
		},
	})

	_, err := client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		reasons := txErr.CancellationReasons
		if entity < len(reasons) && conditionFailed(reasons[entity]) {
			t.logger.Debug("skipped deleted item", "table", t.name, "id", id)
			return nil, nil
		}
		for i, reason := range reasons {
			if conditionFailed(reason) && i < len(fields) && fields[i] != "" {
				return nil, t.duplicate(fields[i])
			}
		}
	}
	if err != nil {
		return nil, err
	}

	// Transactions return no attributes; rebuild the item from what was read.
	merged := make(store.Record, len(rec)+len(set))
	for k, v := range rec {
		merged[k] = v
	}
	for k, v := range set {
		if k != "id" {
			merged[k] = v
		}
	}
	item, err := attributevalue.MarshalMap(map[string]any(merged))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return unmarshalRecord(item)
}

// constraintChanges returns the constraint record writes an update of rec by
// set needs. A soft delete releases every constraint of rec; otherwise each
// unique value set changes is swapped for the new one. fields[i] names the
// field guarded by items[i], empty for releases.
func (t *Table) constraintChanges(rec, set store.Record) ([]types.TransactWriteItem, []string) {
	if t.driver.config.UniqueTable == "" {
		return nil, nil
	}

	merged := make(store.Record, len(rec)+len(set))
	for k, v := range rec {
		merged[k] = v
	}
	for k, v := range set {
		merged[k] = v
	}

	var (
		items  []types.TransactWriteItem
		fields []string
	)
	if store.IsDeleted(merged) {
		for _, c := range t.constraints(rec) {
			items = append(items, t.constraintDelete(c))
			fields = append(fields, "")
		}
		return items, fields
	}

	before := make(map[string]constraint)
	for _, c := range t.constraints(rec) {
		before[c.field] = c
	}
	after := make(map[string]constraint)
	for _, c := range t.constraints(merged) {
		after[c.field] = c
	}

	for _, p := range t.model.Schema().Properties {
		if _, ok := set[p.Name]; !ok || !p.Unique || p.Name == "id" {
			continue
		}
		old, hadOld := before[p.Name]
		next, hasNext := after[p.Name]
		if hadOld && hasNext && old.pk == next.pk {
			continue
		}
		if hadOld {
			items = append(items, t.constraintDelete(old))
			fields = append(fields, "")
		}
		if hasNext {
			items = append(items, t.constraintPut(next, fmt.Sprint(rec["id"])))
			fields = append(fields, p.Name)
		}
	}
	return items, fields
}

func (t *Table) constraintPut(c constraint, id string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(t.driver.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: c.pk},
				"model":       &types.AttributeValueMemberS{Value: t.model.Name()},
				"field_name":  &types.AttributeValueMemberS{Value: c.field},
				"field_value": &types.AttributeValueMemberS{Value: c.value},
				"entity_id":   &types.AttributeValueMemberS{Value: id},
			},
			// Fails if another record already holds this value
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

func (t *Table) constraintDelete(c constraint) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(t.driver.config.UniqueTable),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: c.pk},
			},
		},
	}
}

// updateCondition matches existing items that are not soft deleted.
func updateCondition() string {
	return "attribute_exists(id) AND (" + NotDeletedCondition() + ")"
}

func conditionFailed(reason types.CancellationReason) bool {
	return reason.Code != nil && *reason.Code == "ConditionalCheckFailed"
}

type constraint struct {
	pk    string
	field string
	value string
}

// constraints returns the unique constraint records for rec. None are
// returned when no unique table is configured.
func (t *Table) constraints(rec store.Record) []constraint {
	if t.driver.config.UniqueTable == "" {
		return nil
	}
	var out []constraint
	for _, p := range t.model.Schema().Properties {
		if !p.Unique || p.Name == "id" {
			continue
		}
		v, ok := rec[p.Name]
		if !ok || v == nil {
			continue
		}
		value := fmt.Sprint(v)
		out = append(out, constraint{
			pk:    UniqueConstraintPK(t.model.Name(), p.Name, value),
			field: p.Name,
			value: value,
		})
	}
	return out
}

// UniqueConstraintPK returns the partition key of a unique constraint record.
func UniqueConstraintPK(model, field, value string) string {
	return fmt.Sprintf("UNIQUE#%s#%s#%s", model, field, value)
}

// mapCreateTransactionError maps a cancelled create transaction to the
// duplicate error of the field whose put failed. fields[i] names the field
// guarded by transaction item i.
func (t *Table) mapCreateTransactionError(err error, fields []string) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if conditionFailed(reason) && i < len(fields) {
				return t.duplicate(fields[i])
			}
		}
	}
	return err
}

func (t *Table) duplicate(field string) error {
	return t.model.ValidationError(t.model.Messages().Duplicate(field), field, store.RuleDuplicate)
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalRecord(item map[string]types.AttributeValue) (store.Record, error) {
	var rec map[string]any
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return store.Record(rec), nil
}

func limitOf(opts store.Options) int {
	switch n := opts.Params[LimitParam].(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func withLimit(opts store.Options, n int) store.Options {
	params := make(map[string]any, len(opts.Params)+1)
	for k, v := range opts.Params {
		params[k] = v
	}
	params[LimitParam] = n
	return store.Options{Include: opts.Include, Params: params}
}

func withoutLimit(opts store.Options) store.Options {
	params := make(map[string]any, len(opts.Params))
	for k, v := range opts.Params {
		if k != LimitParam {
			params[k] = v
		}
	}
	return store.Options{Params: params}
}

func consistentRead(opts store.Options) *bool {
	if v, ok := opts.Params[ConsistentReadParam].(bool); ok && v {
		return aws.Bool(true)
	}
	return nil
}
