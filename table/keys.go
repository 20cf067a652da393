package table

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key is a fully resolved primary key: the definition it belongs to plus
// the key column values. Sort is nil for simple keys.
type Key struct {
	Definition Definition
	Partition  any
	Sort       any
}

// ExtractKey pulls the primary key values out of a DynamoDB item and
// validates them against the definition.
func (d Definition) ExtractKey(item map[string]types.AttributeValue) (Key, error) {
	part, ok := item[d.PartitionKey.Name]
	if !ok {
		return Key{}, fmt.Errorf("partition key %q not found", d.PartitionKey.Name)
	}
	if err := attributeMatchesKind(d.PartitionKey.Kind, part); err != nil {
		return Key{}, fmt.Errorf("partition key %q: %w", d.PartitionKey.Name, err)
	}
	key := Key{
		Definition: d,
		Partition:  keyValueFromAV(part),
	}
	if !d.HasSortKey() {
		return key, nil
	}
	sort, ok := item[d.SortKey.Name]
	if !ok {
		return Key{}, fmt.Errorf("sort key %q not found", d.SortKey.Name)
	}
	if err := attributeMatchesKind(d.SortKey.Kind, sort); err != nil {
		return Key{}, fmt.Errorf("sort key %q: %w", d.SortKey.Name, err)
	}
	key.Sort = keyValueFromAV(sort)
	return key, nil
}

// AttributeValues marshals the key values into the attribute map used by
// GetItem, UpdateItem and DeleteItem inputs.
func (k Key) AttributeValues() (map[string]types.AttributeValue, error) {
	d := k.Definition
	pk, err := MarshalKeyValue(d.PartitionKey, k.Partition)
	if err != nil {
		return nil, err
	}
	if !d.HasSortKey() {
		return map[string]types.AttributeValue{d.PartitionKey.Name: pk}, nil
	}
	if k.Sort == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", d.SortKey.Name)
	}
	sk, err := MarshalKeyValue(d.SortKey, k.Sort)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		d.PartitionKey.Name: pk,
		d.SortKey.Name:      sk,
	}, nil
}

// MarshalKeyValue converts a plain key value to the attribute value the
// key definition demands. Numeric keys accept the string numerals that
// DynamoDB itself uses on the wire as well as Go numbers.
func MarshalKeyValue(def KeyDef, value any) (types.AttributeValue, error) {
	switch def.Kind {
	case KeyKindS:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("key %q: expected string for S key, got %T", def.Name, value)
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case KeyKindN:
		switch v := value.(type) {
		case string:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("key %q: %q is not a number: %w", def.Name, v, err)
			}
			return &types.AttributeValueMemberN{Value: v}, nil
		case float64:
			return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
		case int:
			return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}, nil
		case int64:
			return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}, nil
		default:
			return nil, fmt.Errorf("key %q: expected number for N key, got %T", def.Name, value)
		}
	case KeyKindB:
		switch v := value.(type) {
		case []byte:
			return &types.AttributeValueMemberB{Value: v}, nil
		case string:
			return &types.AttributeValueMemberB{Value: []byte(v)}, nil
		default:
			return nil, fmt.Errorf("key %q: expected binary for B key, got %T", def.Name, value)
		}
	default:
		return nil, fmt.Errorf("key %q: unsupported key kind %q", def.Name, def.Kind)
	}
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		return nil
	}
}

func attributeMatchesKind(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got key kind %q, want %q", got, want)
	}
	return nil
}
