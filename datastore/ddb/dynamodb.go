/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	storeerrors "github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/registry"
	"github.com/suparena/eserp/storagemodels"
)

const backendName = "dynamodb"

// API is the subset of the DynamoDB client used by Store. *dynamodb.Client
// satisfies it.
type API interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
}

// Store implements datastore.DataStore[T] on a single DynamoDB table. The
// PK/SK of each item come from the index map registered for T.
type Store[T storagemodels.Document] struct {
	client    API
	tableName string
	indexMap  map[string]string
	retry     RetryOptions
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	retry  RetryOptions
	logger *slog.Logger
}

// WithRetry overrides the page retry policy.
func WithRetry(r RetryOptions) Option {
	return func(o *storeOptions) {
		o.retry = r
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

// expandMacros fills each template of indexMap from the attribute map. A macro
// with no matching attribute expands to the empty string and is reported in
// missing.
func expandMacros(indexMap map[string]string, av map[string]types.AttributeValue) (map[string]string, []string) {
	res := make(map[string]string, len(indexMap))
	var missing []string

	for fieldName, template := range indexMap {
		expanded := macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			key := strings.Trim(macro, "{}")

			val, ok := av[key]
			if !ok {
				missing = append(missing, key)
				return ""
			}

			switch tv := val.(type) {
			case *types.AttributeValueMemberS:
				return tv.Value
			case *types.AttributeValueMemberN:
				return tv.Value
			case *types.AttributeValueMemberBOOL:
				return fmt.Sprintf("%v", tv.Value)
			default:
				// NULL, binary and set values never form part of a key
				missing = append(missing, key)
				return ""
			}
		})
		res[fieldName] = expanded
	}

	return res, missing
}

// keyAttributes marshals a storagemodels.Key into attribute values usable for
// macro expansion.
func keyAttributes(key storagemodels.Key) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(map[string]string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	return av, nil
}

// ClientConfig holds what is needed to reach a DynamoDB endpoint.
type ClientConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	Endpoint string
}

// NewDynamoDBClient initializes a DynamoDB client. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewDynamoDBClient(ctx context.Context, cfg ClientConfig) (*sdk.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	var clientOpts []func(*sdk.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *sdk.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return sdk.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore constructs a Store for type T. T must have an index map with PK and
// SK templates registered.
func NewStore[T storagemodels.Document](client API, tableName string, opts ...Option) (*Store[T], error) {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %T", storeerrors.ErrNoIndexMap, *new(T))
	}
	if _, ok := indexMap["PK"]; !ok {
		return nil, storeerrors.NewValidationError("indexMap", "PK template is required")
	}
	if _, ok := indexMap["SK"]; !ok {
		return nil, storeerrors.NewValidationError("indexMap", "SK template is required")
	}
	if tableName == "" {
		return nil, storeerrors.NewValidationError("tableName", "must not be empty")
	}

	o := storeOptions{retry: DefaultRetryOptions()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Store[T]{
		client:    client,
		tableName: tableName,
		indexMap:  indexMap,
		retry:     o.retry,
		logger:    o.logger,
	}, nil
}

// primaryKey expands the PK and SK templates of the index map from key.
func (d *Store[T]) primaryKey(key storagemodels.Key) (map[string]types.AttributeValue, error) {
	av, err := keyAttributes(key)
	if err != nil {
		return nil, err
	}
	expanded, missing := expandMacros(map[string]string{"PK": d.indexMap["PK"], "SK": d.indexMap["SK"]}, av)
	if len(missing) > 0 {
		return nil, storeerrors.NewValidationError("key", fmt.Sprintf("missing key attributes %v", missing))
	}
	return buildKeyFromExpanded(expanded)
}

// GetOne retrieves a single item by its key. It returns a NotFoundError when no
// item exists.
func (d *Store[T]) GetOne(ctx context.Context, key storagemodels.Key) (*T, error) {
	keyMap, err := d.primaryKey(key)
	if err != nil {
		return nil, err
	}

	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName: &d.tableName,
		Key:       keyMap,
	})
	if err != nil {
		return nil, wrapError("GetItem", err)
	}
	if out.Item == nil {
		return nil, storeerrors.NewNotFoundError(fmt.Sprintf("%T", *new(T)), fmt.Sprint(map[string]string(key)))
	}

	result := new(T)
	if err := attributevalue.UnmarshalMap(out.Item, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return result, nil
}

// Put stores the entity, populating every key of the index map from the
// entity's own attributes.
func (d *Store[T]) Put(ctx context.Context, entity T) error {
	av, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	expanded, missing := expandMacros(d.indexMap, av)
	if len(missing) > 0 {
		return storeerrors.NewValidationError("key", fmt.Sprintf("entity is missing key attributes %v", missing))
	}

	for k, v := range expanded {
		av[k] = &types.AttributeValueMemberS{Value: v}
	}

	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: &d.tableName,
		Item:      av,
	})
	if err != nil {
		return wrapError("PutItem", err)
	}
	return nil
}

// Delete removes the item identified by key. Deleting an absent item is a
// NotFoundError.
func (d *Store[T]) Delete(ctx context.Context, key storagemodels.Key) error {
	keyMap, err := d.primaryKey(key)
	if err != nil {
		return err
	}

	_, err = d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           &d.tableName,
		Key:                 keyMap,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return storeerrors.NewNotFoundError(fmt.Sprintf("%T", *new(T)), fmt.Sprint(map[string]string(key)))
		}
		return wrapError("DeleteItem", err)
	}
	return nil
}

// buildKeyFromExpanded builds a DynamoDB key from the expanded index map.
// It requires non-empty values for "PK" and "SK".
func buildKeyFromExpanded(expanded map[string]string) (map[string]types.AttributeValue, error) {
	pk, okPK := expanded["PK"]
	sk, okSK := expanded["SK"]

	if !okPK || !okSK || pk == "" || sk == "" {
		return nil, storeerrors.NewValidationError("key", "expanded index map missing valid PK or SK")
	}

	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}, nil
}
