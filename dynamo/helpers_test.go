package dynamo

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/origami/store"
)

// fakeAPI serves scans from fixed pages and records every call.
type fakeAPI struct {
	mu sync.Mutex

	pages   [][]map[string]types.AttributeValue
	items   map[string]map[string]types.AttributeValue
	deleted map[string]bool
	putErr  error
	txErr   error

	scans   []*dynamodb.ScanInput
	gets    []*dynamodb.GetItemInput
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	txs     []*dynamodb.TransactWriteItemsInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items:   make(map[string]map[string]types.AttributeValue),
		deleted: make(map[string]bool),
	}
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)

	page := 0
	if start, ok := in.ExclusiveStartKey["page"].(*types.AttributeValueMemberN); ok {
		page, _ = strconv.Atoi(start.Value)
	}
	out := &dynamodb.ScanOutput{}
	if page < len(f.pages) {
		out.Items = f.pages[page]
	}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"page": &types.AttributeValueMemberN{Value: strconv.Itoa(page + 1)},
		}
	}
	return out, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, in)
	return &dynamodb.GetItemOutput{Item: f.items[keyID(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)

	id := keyID(in.Key)
	if f.deleted[id] {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	attrs := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
	for k, v := range f.items[id] {
		attrs[k] = v
	}
	for name, field := range in.ExpressionAttributeNames {
		if len(name) > 5 && name[:5] == "#attr" {
			attrs[field] = in.ExpressionAttributeValues[":val"+name[5:]]
		}
	}
	return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, in)
	if f.txErr != nil {
		return nil, f.txErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func keyID(key map[string]types.AttributeValue) string {
	if s, ok := key["id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestModel wires a Post model to a driver over api.
func newTestModel(t *testing.T, api API, cfg Config) (*store.Model, *Table) {
	t.Helper()
	cfg.Logger = discardLogger()
	d := New(api, cfg)

	scfg := store.DefaultConfig()
	scfg.Logger = discardLogger()
	scfg.Now = func() time.Time { return fixedNow }

	s, err := store.New(d, scfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	m, err := s.Register("Post", store.Schema{Properties: []store.Property{
		{Name: "id"},
		{Name: "slug", Unique: true},
		{Name: "title"},
		{Name: "deletedAt"},
	}})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return m, m.Backend().(*Table)
}

func marshalItem(t *testing.T, rec store.Record) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		t.Fatalf("marshal item: %v", err)
	}
	return item
}

func stringAttr(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		t.Fatalf("expected string attribute, got %T", av)
	}
	return s.Value
}
