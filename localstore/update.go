package localstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// UpdateItem merges SET assignments into an existing item, creating the
// item from the key attributes when it does not exist yet.
//
// Only the plain `SET #name = :value` expressions that ddbmap's partial
// updates produce are supported; other update clauses (REMOVE, ADD,
// DELETE) and functions are rejected.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if params == nil || params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("update expression is required")
	}
	if err := s.checkTable(params.TableName); err != nil {
		return nil, err
	}

	assignments, err := parseSetExpression(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	key, err := s.encodeItemKey(params.Key)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item := make(map[string]types.AttributeValue)
		entry, err := txn.Get(key)
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if err := entry.Value(func(val []byte) error {
				item, err = deserializeItem(val)
				return err
			}); err != nil {
				return err
			}
		}
		// Key attributes are always present on the resulting item.
		for k, v := range params.Key {
			item[k] = v
		}
		for name, value := range assignments {
			item[name] = value
		}
		data, err := serializeItem(item)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

// parseSetExpression parses a SET-only update expression of the form
// produced by the aws expression builder: "SET #0 = :0, #1 = :1".
func parseSetExpression(expr string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	trimmed := strings.TrimSpace(expr)
	const setKeyword = "SET "
	if !strings.HasPrefix(trimmed, setKeyword) {
		return nil, fmt.Errorf("unsupported update expression %q: only SET is supported", expr)
	}
	assignments := make(map[string]types.AttributeValue)
	for _, clause := range strings.Split(trimmed[len(setKeyword):], ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed SET clause %q", clause)
		}
		nameTok := strings.TrimSpace(parts[0])
		valueTok := strings.TrimSpace(parts[1])

		name := nameTok
		if strings.HasPrefix(nameTok, "#") {
			resolved, ok := names[nameTok]
			if !ok {
				return nil, fmt.Errorf("unknown expression attribute name %q", nameTok)
			}
			name = resolved
		}
		if strings.ContainsAny(name, ".[") {
			return nil, fmt.Errorf("nested document paths are not supported: %q", name)
		}

		if !strings.HasPrefix(valueTok, ":") {
			return nil, fmt.Errorf("unsupported SET operand %q: only value placeholders are supported", valueTok)
		}
		value, ok := values[valueTok]
		if !ok {
			return nil, fmt.Errorf("unknown expression attribute value %q", valueTok)
		}
		assignments[name] = value
	}
	return assignments, nil
}
