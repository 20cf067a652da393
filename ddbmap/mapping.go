// Package ddbmap exposes one DynamoDB table through a small
// dictionary-style API: scan, get, put, partial update and delete by
// primary key. It also satisfies the editor's Store contract.
package ddbmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/mwestman/ddbgrid/table"
)

// ErrNotFound is returned by Get when no item exists under the key.
var ErrNotFound = errors.New("item not found")

// DynamoAPI is the subset of the DynamoDB client the mapping uses.
// Satisfied by *dynamodb.Client and by localstore.Store.
type DynamoAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Mapping is a dictionary-style view of one DynamoDB table.
type Mapping struct {
	client DynamoAPI
	def    table.Definition
	log    zerolog.Logger
}

// Option configures a Mapping.
type Option func(*Mapping)

// WithLogger sets the logger used for per-operation debug logs.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Mapping) {
		m.log = l
	}
}

// New builds a mapping over the named table. The table's key schema is
// discovered once via DescribeTable, partition key first.
func New(ctx context.Context, client DynamoAPI, tableName string, opts ...Option) (*Mapping, error) {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", tableName, err)
	}
	def, err := definitionFromDescription(out.Table)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", tableName, err)
	}
	m := &Mapping{
		client: client,
		def:    def,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Definition returns the discovered table definition.
func (m *Mapping) Definition() table.Definition {
	return m.def
}

// definitionFromDescription resolves the key schema: key names from
// KeySchema (HASH first, optional RANGE), kinds from the attribute
// definitions.
func definitionFromDescription(desc *types.TableDescription) (table.Definition, error) {
	if desc == nil || desc.TableName == nil {
		return table.Definition{}, fmt.Errorf("empty table description")
	}
	kinds := make(map[string]table.KeyKind, len(desc.AttributeDefinitions))
	for _, ad := range desc.AttributeDefinitions {
		if ad.AttributeName != nil {
			kinds[*ad.AttributeName] = table.KeyKind(ad.AttributeType)
		}
	}
	def := table.Definition{Name: *desc.TableName}
	for _, ks := range desc.KeySchema {
		if ks.AttributeName == nil {
			continue
		}
		kd := table.KeyDef{Name: *ks.AttributeName, Kind: kinds[*ks.AttributeName]}
		switch ks.KeyType {
		case types.KeyTypeHash:
			def.PartitionKey = kd
		case types.KeyTypeRange:
			def.SortKey = kd
		}
	}
	if def.PartitionKey.Name == "" {
		return table.Definition{}, fmt.Errorf("no partition key in key schema")
	}
	return def, nil
}

// key resolves a caller-supplied key value to a full primary key. Tables
// with a composite key take a two-element []any of partition and sort
// value; simple-key tables take the partition value directly.
func (m *Mapping) key(key any) (table.Key, error) {
	values, ok := key.([]any)
	if !ok {
		values = []any{key}
	}
	if len(values) != len(m.def.KeyNames()) {
		return table.Key{}, fmt.Errorf("table %q requires a value for each of %v", m.def.Name, m.def.KeyNames())
	}
	k := table.Key{Definition: m.def, Partition: values[0]}
	if m.def.HasSortKey() {
		k.Sort = values[1]
	}
	return k, nil
}

// FetchAll scans the whole table, draining successive pages via
// LastEvaluatedKey.
func (m *Mapping) FetchAll(ctx context.Context) ([]table.Row, error) {
	m.log.Debug().Str("table", m.def.Name).Msg("performing a scan operation")
	var rows []table.Row
	var startKey map[string]types.AttributeValue
	for {
		out, err := m.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(m.def.Name),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan table %q: %w", m.def.Name, err)
		}
		for _, item := range out.Items {
			var row table.Row
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, fmt.Errorf("unmarshal item: %w", err)
			}
			rows = append(rows, row)
		}
		if out.LastEvaluatedKey == nil {
			return rows, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Get retrieves a single row by key. Returns ErrNotFound if no item
// exists under the key.
func (m *Mapping) Get(ctx context.Context, key any) (table.Row, error) {
	k, err := m.key(key)
	if err != nil {
		return nil, err
	}
	attrs, err := k.AttributeValues()
	if err != nil {
		return nil, err
	}
	m.log.Debug().Str("table", m.def.Name).Msg("performing a get_item operation")
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.def.Name),
		Key:       attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("get item from %q: %w", m.def.Name, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("key %v: %w", key, ErrNotFound)
	}
	var row table.Row
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return row, nil
}

// Upsert creates or fully replaces the row stored under the key. The key
// attributes are merged into the item, overriding same-named columns.
func (m *Mapping) Upsert(ctx context.Context, key any, row table.Row) error {
	k, err := m.key(key)
	if err != nil {
		return err
	}
	keyAttrs, err := k.AttributeValues()
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(map[string]any(row))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	for name, av := range keyAttrs {
		item[name] = av
	}
	m.log.Debug().Str("table", m.def.Name).Msg("performing a put_item operation")
	if _, err := m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.def.Name),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item to %q: %w", m.def.Name, err)
	}
	return nil
}

// PartialUpdate merges the changed columns into the row stored under the
// key, leaving other columns untouched. Key columns cannot be modified.
func (m *Mapping) PartialUpdate(ctx context.Context, key any, cols table.Row) error {
	if len(cols) == 0 {
		return nil
	}
	k, err := m.key(key)
	if err != nil {
		return err
	}
	attrs, err := k.AttributeValues()
	if err != nil {
		return err
	}
	upd := expression.UpdateBuilder{}
	for name, value := range cols {
		if name == m.def.PartitionKey.Name || name == m.def.SortKey.Name {
			return fmt.Errorf("cannot modify key column %q", name)
		}
		upd = upd.Set(expression.Name(name), expression.Value(value))
	}
	expr, err := expression.NewBuilder().WithUpdate(upd).Build()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}
	m.log.Debug().Str("table", m.def.Name).Msg("performing an update_item operation")
	if _, err := m.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(m.def.Name),
		Key:                       attrs,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}); err != nil {
		return fmt.Errorf("update item in %q: %w", m.def.Name, err)
	}
	return nil
}

// Delete removes the row stored under the key.
func (m *Mapping) Delete(ctx context.Context, key any) error {
	k, err := m.key(key)
	if err != nil {
		return err
	}
	attrs, err := k.AttributeValues()
	if err != nil {
		return err
	}
	m.log.Debug().Str("table", m.def.Name).Msg("performing a delete_item operation")
	if _, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.def.Name),
		Key:       attrs,
	}); err != nil {
		return fmt.Errorf("delete item from %q: %w", m.def.Name, err)
	}
	return nil
}

var _ DynamoAPI = (*dynamodb.Client)(nil)
