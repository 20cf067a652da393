package localstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mwestman/ddbgrid/table"
)

// Badger key layout: [tableName][0x00][partitionKey][0x00][sortKey].
// Key values are encoded so byte-wise comparison preserves the DynamoDB
// sort order for all key kinds (S, N, B). The separator byte (0x00) is
// escaped out of the value encodings.

const keySeparator byte = 0x00

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

// tablePrefix returns the prefix shared by every key of the table.
func tablePrefix(tableName string) []byte {
	var buf bytes.Buffer
	buf.WriteString(tableName)
	buf.WriteByte(keySeparator)
	return buf.Bytes()
}

// encodeKey encodes a primary key into a badger key.
func encodeKey(key table.Key) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tablePrefix(key.Definition.Name))

	pk, err := encodeKeyValue(key.Partition, key.Definition.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pk)
	buf.WriteByte(keySeparator)

	if key.Definition.HasSortKey() {
		sk, err := encodeKeyValue(key.Sort, key.Definition.SortKey.Kind)
		if err != nil {
			return nil, fmt.Errorf("encode sort key: %w", err)
		}
		buf.Write(sk)
	}
	return buf.Bytes(), nil
}

// encodeKeyValue encodes one key value with ordering preserved per kind.
func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		buf.WriteByte(keyTypeString)
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.Write(escapeBytes([]byte(s)))
	case table.KeyKindN:
		buf.WriteByte(keyTypeNumber)
		var numStr string
		switch v := value.(type) {
		case string:
			numStr = v
		case float64:
			numStr = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			numStr = strconv.Itoa(v)
		case int64:
			numStr = strconv.FormatInt(v, 10)
		default:
			return nil, fmt.Errorf("expected number for N key, got %T", value)
		}
		encoded, err := encodeNumber(numStr)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	case table.KeyKindB:
		buf.WriteByte(keyTypeBinary)
		var b []byte
		switch v := value.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return nil, fmt.Errorf("expected binary for B key, got %T", value)
		}
		buf.Write(escapeBytes(b))
	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber encodes a number string such that byte comparison matches
// numeric ordering: positive numbers get the sign bit flipped, negative
// numbers are fully inverted.
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}
	bits := math.Float64bits(f)
	buf := make([]byte, 9)
	if f >= 0 {
		buf[0] = 0x80
		bits ^= 1 << 63
	} else {
		buf[0] = 0x7F
		bits = ^bits
	}
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf, nil
}

// escapeBytes escapes separator bytes: 0x01 0x01 for a literal 0x00 and
// 0x01 0x02 for a literal 0x01.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// Item serialization for badger values.

// storedAV is a gob-encodable representation of an AttributeValue.
type storedAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]storedAV{})
	gob.Register([]storedAV{})
	gob.Register([]string{})
	gob.Register([][]byte{})
}

// serializeItem encodes a DynamoDB item for storage.
func serializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	stored := make(map[string]storedAV, len(item))
	for k, v := range item {
		sv, err := toStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		stored[k] = sv
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stored); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

// deserializeItem decodes stored bytes back into a DynamoDB item.
func deserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var stored map[string]storedAV
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := make(map[string]types.AttributeValue, len(stored))
	for k, sv := range stored {
		av, err := fromStored(sv)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

func toStored(av types.AttributeValue) (storedAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return storedAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return storedAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return storedAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return storedAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return storedAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return storedAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return storedAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return storedAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]storedAV, len(v.Value))
		for i, elem := range v.Value {
			sv, err := toStored(elem)
			if err != nil {
				return storedAV{}, err
			}
			list[i] = sv
		}
		return storedAV{Type: "L", Value: list}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]storedAV, len(v.Value))
		for k, elem := range v.Value {
			sv, err := toStored(elem)
			if err != nil {
				return storedAV{}, err
			}
			m[k] = sv
		}
		return storedAV{Type: "M", Value: m}, nil
	default:
		return storedAV{}, fmt.Errorf("unsupported attribute value type %T", av)
	}
}

func fromStored(sv storedAV) (types.AttributeValue, error) {
	switch sv.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sv.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sv.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sv.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sv.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sv.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sv.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sv.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sv.Value.([][]byte)}, nil
	case "L":
		stored := sv.Value.([]storedAV)
		list := make([]types.AttributeValue, len(stored))
		for i, elem := range stored {
			av, err := fromStored(elem)
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case "M":
		stored := sv.Value.(map[string]storedAV)
		m := make(map[string]types.AttributeValue, len(stored))
		for k, elem := range stored {
			av, err := fromStored(elem)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unknown stored attribute type %q", sv.Type)
	}
}
