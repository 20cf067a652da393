// Package localstore is a BadgerDB-backed stand-in for one DynamoDB
// table. It implements the client subset ddbmap uses, so the demo and
// the tests run without AWS credentials or a network.
package localstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/mwestman/ddbgrid/table"
)

// Options configures the badger database.
type Options struct {
	// Path to the database directory. Empty means in-memory.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
}

// Store holds one table in a badger database.
type Store struct {
	db  *badger.DB
	def table.Definition
}

// New opens the badger database and binds it to the table definition.
func New(opts Options, def table.Definition) (*Store, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if def.PartitionKey.Name == "" {
		return nil, fmt.Errorf("partition key is required")
	}
	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, def: def}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) checkTable(tableName *string) error {
	if tableName == nil {
		return fmt.Errorf("table name is required")
	}
	if *tableName != s.def.Name {
		return fmt.Errorf("table not found: %s", *tableName)
	}
	return nil
}

// DescribeTable reports the table's key schema so callers can discover
// key names the same way they would against DynamoDB.
func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}
	attrDefs := []types.AttributeDefinition{{
		AttributeName: aws.String(s.def.PartitionKey.Name),
		AttributeType: types.ScalarAttributeType(s.def.PartitionKey.Kind),
	}}
	keySchema := []types.KeySchemaElement{{
		AttributeName: aws.String(s.def.PartitionKey.Name),
		KeyType:       types.KeyTypeHash,
	}}
	if s.def.HasSortKey() {
		attrDefs = append(attrDefs, types.AttributeDefinition{
			AttributeName: aws.String(s.def.SortKey.Name),
			AttributeType: types.ScalarAttributeType(s.def.SortKey.Kind),
		})
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: aws.String(s.def.SortKey.Name),
			KeyType:       types.KeyTypeRange,
		})
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:            aws.String(s.def.Name),
			AttributeDefinitions: attrDefs,
			KeySchema:            keySchema,
			TableStatus:          types.TableStatusActive,
		},
	}, nil
}

// GetItem retrieves a single item by primary key. A missing item yields
// an output with a nil Item, as DynamoDB does.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil || params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}
	key, err := s.encodeItemKey(params.Key)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{}
	err = s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			out.Item, err = deserializeItem(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil || params.Item == nil {
		return nil, fmt.Errorf("item is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}
	key, err := s.encodeItemKey(params.Item)
	if err != nil {
		return nil, err
	}
	value, err := serializeItem(params.Item)
	if err != nil {
		return nil, fmt.Errorf("serialize item: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem removes an item by primary key. Deleting a missing item is
// not an error.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if params == nil || params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}
	key, err := s.encodeItemKey(params.Key)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan returns the table's items in key order, honoring Limit and
// ExclusiveStartKey for pagination.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}

	limit := 0
	if params.Limit != nil {
		limit = int(*params.Limit)
	}
	prefix := tablePrefix(s.def.Name)

	var items []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		if params.ExclusiveStartKey != nil {
			startKey, err := s.encodeItemKey(params.ExclusiveStartKey)
			if err != nil {
				return fmt.Errorf("encode start key: %w", err)
			}
			it.Seek(startKey)
			if it.Valid() && bytes.Equal(it.Item().Key(), startKey) {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		for ; it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Item().Key(), prefix) {
				break
			}
			var item map[string]types.AttributeValue
			if err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = deserializeItem(val)
				return err
			}); err != nil {
				return err
			}
			items = append(items, item)

			if limit > 0 && len(items) == limit {
				it.Next()
				if it.Valid() && bytes.HasPrefix(it.Item().Key(), prefix) {
					pk, err := s.def.ExtractKey(item)
					if err != nil {
						return fmt.Errorf("extract last key: %w", err)
					}
					lastKey, err = pk.AttributeValues()
					if err != nil {
						return err
					}
				}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: lastKey,
	}, nil
}

// encodeItemKey extracts and encodes the primary key of an item or key
// attribute map.
func (s *Store) encodeItemKey(attrs map[string]types.AttributeValue) ([]byte, error) {
	pk, err := s.def.ExtractKey(attrs)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}
	key, err := encodeKey(pk)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	return key, nil
}
