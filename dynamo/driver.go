// Package dynamo provides a store driver backed by Amazon DynamoDB.
//
// Each model lives in its own table keyed by a string "id" attribute. Queries
// run as filtered scans; soft deletes are conditional updates that leave
// already deleted items untouched.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-openapi/inflect"

	"github.com/jacentio/origami/store"
)

// ErrNotConnected is returned by table operations before Connect.
var ErrNotConnected = errors.New("origami: dynamo not connected")

// API is the subset of the DynamoDB client the driver uses.
type API interface {
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Driver is a store.Driver over DynamoDB.
type Driver struct {
	mu     sync.RWMutex
	client API
	owned  bool
	config Config
}

// New creates a new driver. With a nil client, Connect builds one from the
// default AWS configuration.
func New(client API, config Config) *Driver {
	config.validate()
	return &Driver{
		client: client,
		config: config,
	}
}

// Config returns the driver configuration.
func (d *Driver) Config() Config { return d.config }

// Connect implements store.Driver.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if d.config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(d.config.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	endpoint := d.config.Endpoint
	d.client = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	d.owned = true

	d.config.Logger.Info("dynamodb client configured",
		"region", awsCfg.Region,
		"endpoint", endpoint,
	)
	return nil
}

// Disconnect implements store.Driver. A client built by Connect is dropped;
// a supplied client is kept.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.owned {
		d.client = nil
		d.owned = false
	}
	return nil
}

// Backend implements store.Driver.
func (d *Driver) Backend(m *store.Model) (store.Backend, error) {
	return &Table{
		driver: d,
		model:  m,
		name:   TableName(d.config.TablePrefix, m.Name()),
		logger: d.config.Logger.With("model", m.Name()),
	}, nil
}

func (d *Driver) api() (API, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.client == nil {
		return nil, ErrNotConnected
	}
	return d.client, nil
}

// TableName returns the table of a model: prefix plus the pluralized
// snake_case model name.
func TableName(prefix, model string) string {
	return prefix + inflect.Pluralize(inflect.Underscore(model))
}
