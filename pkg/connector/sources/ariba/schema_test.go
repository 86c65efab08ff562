package ariba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
)

func TestBuildSchema_Shape(t *testing.T) {
	fields := []FieldMetadata{
		{Name: "IsTestProject", Kind: FieldKindSimple, Type: "boolean"},
		{Name: "Owner", Kind: FieldKindObject, Type: "object", Children: []FieldMetadata{
			{Name: "UserId", Kind: FieldKindSimple, Type: "string"},
			{Name: "SourceSystem", Kind: FieldKindSimple, Type: "string"},
		}},
		{Name: "Suppliers", Kind: FieldKindArray, Type: "array", Children: []FieldMetadata{
			{Name: "SupplierId", Kind: FieldKindSimple, Type: "string"},
		}},
	}

	schema := BuildSchema("SourcingProjectFactSystemView", fields)
	require.Len(t, schema.Fields, 3)

	boolField := schema.Fields[0]
	assert.Equal(t, "IsTestProject", boolField.Name)
	assert.Equal(t, core.FieldTypeBool, boolField.Type)
	assert.True(t, boolField.Nullable)
	assert.Empty(t, boolField.Fields)

	objField := schema.Fields[1]
	assert.Equal(t, core.FieldTypeRecord, objField.Type)
	assert.True(t, objField.Nullable)
	require.Len(t, objField.Fields, 2)
	assert.Equal(t, "UserId", objField.Fields[0].Name)
	assert.Equal(t, core.FieldTypeString, objField.Fields[0].Type)

	arrField := schema.Fields[2]
	assert.Equal(t, core.FieldTypeArray, arrField.Type)
	assert.True(t, arrField.Nullable)
	require.Len(t, arrField.Fields, 1)
	assert.Equal(t, "SupplierId", arrField.Fields[0].Name)
}

func TestBuildSchema_TypeMapping(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
		want       core.FieldType
	}{
		{"number maps to double", "number", core.FieldTypeDouble},
		{"boolean maps to bool", "boolean", core.FieldTypeBool},
		{"string maps to string", "string", core.FieldTypeString},
		{"date maps to timestamp", "date", core.FieldTypeTimestamp},
		{"unmapped falls back to string", "geolocation", core.FieldTypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := BuildSchema("V", []FieldMetadata{
				{Name: "F", Kind: FieldKindSimple, Type: tt.sourceType},
			})
			assert.Equal(t, tt.want, schema.Fields[0].Type)
		})
	}
}

func TestBuildSchema_PrimaryKeyNonNullable(t *testing.T) {
	schema := BuildSchema("V", []FieldMetadata{
		{Name: "Id", Kind: FieldKindSimple, Type: "string", PrimaryKey: true},
		{Name: "Label", Kind: FieldKindSimple, Type: "string"},
	})

	assert.False(t, schema.Fields[0].Nullable)
	assert.True(t, schema.Fields[0].Primary)
	assert.True(t, schema.Fields[1].Nullable)
}

func TestBuildSchema_UnmappedArrayWithoutChildren(t *testing.T) {
	schema := BuildSchema("V", []FieldMetadata{
		{Name: "Tags", Kind: FieldKindArray, Type: "array"},
	})

	field := schema.Fields[0]
	assert.Equal(t, core.FieldTypeArray, field.Type)
	assert.True(t, field.Nullable)
	assert.Empty(t, field.Fields)
}

func TestBuildSchema_Deterministic(t *testing.T) {
	fields := []FieldMetadata{
		{Name: "Amount", Kind: FieldKindSimple, Type: "number", Precision: 20, Scale: 6},
		{Name: "Owner", Kind: FieldKindObject, Type: "object", Children: []FieldMetadata{
			{Name: "UserId", Kind: FieldKindSimple, Type: "string"},
		}},
	}

	first := BuildSchema("V", fields)
	second := BuildSchema("V", fields)
	assert.Equal(t, first.Fields, second.Fields)
}

func TestBuildSchema_PreservesInputOrder(t *testing.T) {
	fields := []FieldMetadata{
		{Name: "Zebra", Kind: FieldKindSimple, Type: "string"},
		{Name: "Apple", Kind: FieldKindSimple, Type: "string"},
		{Name: "Mango", Kind: FieldKindSimple, Type: "string"},
	}

	schema := BuildSchema("V", fields)
	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Zebra", "Apple", "Mango"}, names)
}
