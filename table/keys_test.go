package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simpleDef = Definition{
	Name:         "items",
	PartitionKey: KeyDef{Name: "id", Kind: KeyKindS},
}

var compositeDef = Definition{
	Name:         "events",
	PartitionKey: KeyDef{Name: "stream", Kind: KeyKindS},
	SortKey:      KeyDef{Name: "seq", Kind: KeyKindN},
}

func TestExtractKey_Simple(t *testing.T) {
	item := map[string]types.AttributeValue{
		"id":   &types.AttributeValueMemberS{Value: "a"},
		"name": &types.AttributeValueMemberS{Value: "widget"},
	}

	key, err := simpleDef.ExtractKey(item)
	require.NoError(t, err)
	assert.Equal(t, "a", key.Partition)
	assert.Nil(t, key.Sort)
}

func TestExtractKey_Composite(t *testing.T) {
	item := map[string]types.AttributeValue{
		"stream": &types.AttributeValueMemberS{Value: "orders"},
		"seq":    &types.AttributeValueMemberN{Value: "42"},
	}

	key, err := compositeDef.ExtractKey(item)
	require.NoError(t, err)
	assert.Equal(t, "orders", key.Partition)
	assert.Equal(t, "42", key.Sort)
}

func TestExtractKey_MissingPartitionKey(t *testing.T) {
	_, err := simpleDef.ExtractKey(map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: "widget"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `partition key "id" not found`)
}

func TestExtractKey_KindMismatch(t *testing.T) {
	_, err := simpleDef.ExtractKey(map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: "1"},
	})
	require.Error(t, err)
}

func TestKeyAttributeValues(t *testing.T) {
	key := Key{Definition: compositeDef, Partition: "orders", Sort: float64(7)}

	avs, err := key.AttributeValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]types.AttributeValue{
		"stream": &types.AttributeValueMemberS{Value: "orders"},
		"seq":    &types.AttributeValueMemberN{Value: "7"},
	}, avs)
}

func TestKeyAttributeValues_MissingSortKey(t *testing.T) {
	key := Key{Definition: compositeDef, Partition: "orders"}
	_, err := key.AttributeValues()
	require.Error(t, err)
}

func TestMarshalKeyValue(t *testing.T) {
	tests := []struct {
		name  string
		def   KeyDef
		value any
		want  types.AttributeValue
	}{
		{"string", KeyDef{Name: "id", Kind: KeyKindS}, "a", &types.AttributeValueMemberS{Value: "a"}},
		{"number from float", KeyDef{Name: "n", Kind: KeyKindN}, float64(1.5), &types.AttributeValueMemberN{Value: "1.5"}},
		{"number from int", KeyDef{Name: "n", Kind: KeyKindN}, 3, &types.AttributeValueMemberN{Value: "3"}},
		{"number from wire numeral", KeyDef{Name: "n", Kind: KeyKindN}, "42", &types.AttributeValueMemberN{Value: "42"}},
		{"binary", KeyDef{Name: "b", Kind: KeyKindB}, []byte{0x01}, &types.AttributeValueMemberB{Value: []byte{0x01}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalKeyValue(tt.def, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalKeyValue_Errors(t *testing.T) {
	_, err := MarshalKeyValue(KeyDef{Name: "id", Kind: KeyKindS}, 7)
	assert.Error(t, err)

	_, err = MarshalKeyValue(KeyDef{Name: "n", Kind: KeyKindN}, "not a number")
	assert.Error(t, err)
}

func TestCloneRows(t *testing.T) {
	rows := []Row{{"id": "a"}}

	clone := CloneRows(rows)
	clone[0]["id"] = "b"

	assert.Equal(t, "a", rows[0]["id"])
}

func TestKeyNames(t *testing.T) {
	assert.Equal(t, []string{"id"}, simpleDef.KeyNames())
	assert.Equal(t, []string{"stream", "seq"}, compositeDef.KeyNames())
	assert.False(t, simpleDef.HasSortKey())
	assert.True(t, compositeDef.HasSortKey())
}
