package ariba

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

func decoderSchema(fields ...core.Field) *core.Schema {
	return &core.Schema{Name: "TestView", Fields: fields}
}

func TestRecordDecoder_ScalarCoercions(t *testing.T) {
	t.Run("decimal with trailing minus", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Amount", Type: core.FieldTypeDecimal, Nullable: true, Scale: 0,
		}))
		out, err := d.Decode(map[string]interface{}{"Amount": "12345-"})
		require.NoError(t, err)

		dec, ok := out["Amount"].(decimal.Decimal)
		require.True(t, ok)
		assert.True(t, dec.Equal(decimal.NewFromInt(-12345)), "got %s", dec)
	})

	t.Run("decimal applies scale", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Amount", Type: core.FieldTypeDecimal, Nullable: true, Scale: 2,
		}))
		out, err := d.Decode(map[string]interface{}{"Amount": "10.456"})
		require.NoError(t, err)

		dec := out["Amount"].(decimal.Decimal)
		assert.Equal(t, "10.46", dec.StringFixed(2))
	})

	t.Run("double with trailing minus", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Rate", Type: core.FieldTypeDouble, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"Rate": "12.5-"})
		require.NoError(t, err)
		assert.Equal(t, -12.5, out["Rate"])
	})

	t.Run("int and long", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(
			core.Field{Name: "Count", Type: core.FieldTypeInt, Nullable: true},
			core.Field{Name: "Total", Type: core.FieldTypeLong, Nullable: true},
		))
		out, err := d.Decode(map[string]interface{}{"Count": "42-", "Total": "9000000000"})
		require.NoError(t, err)
		assert.Equal(t, int32(-42), out["Count"])
		assert.Equal(t, int64(9000000000), out["Total"])
	})

	t.Run("boolean is case insensitive true match", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(
			core.Field{Name: "Active", Type: core.FieldTypeBool, Nullable: true},
			core.Field{Name: "Closed", Type: core.FieldTypeBool, Nullable: true},
		))
		out, err := d.Decode(map[string]interface{}{"Active": "TRUE", "Closed": "yes"})
		require.NoError(t, err)
		assert.Equal(t, true, out["Active"])
		assert.Equal(t, false, out["Closed"])
	})

	t.Run("invalid number fails with conversion error", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Count", Type: core.FieldTypeInt, Nullable: true,
		}))
		_, err := d.Decode(map[string]interface{}{"Count": "abc"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))

		var typed *errors.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, "Count", typed.Details["field"])
		assert.Equal(t, "abc", typed.Details["value"])
		assert.Equal(t, "int", typed.Details["target_type"])
	})
}

func TestRecordDecoder_TemporalCoercions(t *testing.T) {
	t.Run("date parses basic layout", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Created", Type: core.FieldTypeDate, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"Created": "20230415"})
		require.NoError(t, err)

		ts := out["Created"].(time.Time)
		assert.Equal(t, "2023-04-15", ts.Format("2006-01-02"))
	})

	t.Run("date sentinel decodes to nil", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Created", Type: core.FieldTypeDate, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"Created": "00000000"})
		require.NoError(t, err)
		assert.Nil(t, out["Created"])
	})

	t.Run("time 240000 rolls over to midnight", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "LoadTime", Type: core.FieldTypeTime, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"LoadTime": "240000"})
		require.NoError(t, err)

		ts := out["LoadTime"].(time.Time)
		assert.Equal(t, "00:00:00", ts.Format("15:04:05"))
	})

	t.Run("time 240001 fails", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "LoadTime", Type: core.FieldTypeTime, Nullable: true,
		}))
		_, err := d.Decode(map[string]interface{}{"LoadTime": "240001"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
	})

	t.Run("time inserts colons", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "LoadTime", Type: core.FieldTypeTime, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"LoadTime": "134501"})
		require.NoError(t, err)
		assert.Equal(t, "13:45:01", out["LoadTime"].(time.Time).Format("15:04:05"))
	})

	t.Run("timestamp space separator parses", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Updated", Type: core.FieldTypeTimestamp, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"Updated": "2023-04-15 10:30:00Z"})
		require.NoError(t, err)

		ts := out["Updated"].(time.Time)
		assert.Equal(t, time.Date(2023, 4, 15, 10, 30, 0, 0, time.UTC), ts.UTC())
	})

	t.Run("timestamp sentinel decodes to nil", func(t *testing.T) {
		d := NewRecordDecoder(decoderSchema(core.Field{
			Name: "Updated", Type: core.FieldTypeTimestamp, Nullable: true,
		}))
		out, err := d.Decode(map[string]interface{}{"Updated": "0000-00-00 00:00:00Z"})
		require.NoError(t, err)
		assert.Nil(t, out["Updated"])
	})
}

func TestRecordDecoder_BlankAndNullHandling(t *testing.T) {
	d := NewRecordDecoder(decoderSchema(
		core.Field{Name: "Amount", Type: core.FieldTypeDouble, Nullable: true},
		core.Field{Name: "Note", Type: core.FieldTypeString, Nullable: true},
		core.Field{Name: "Missing", Type: core.FieldTypeString, Nullable: true},
	))

	out, err := d.Decode(map[string]interface{}{
		"Amount": "   ",
		"Note":   "",
	})
	require.NoError(t, err)

	// Blank values pass through verbatim, never coerced
	assert.Equal(t, "   ", out["Amount"])
	assert.Equal(t, "", out["Note"])
	assert.Nil(t, out["Missing"])
}

func TestRecordDecoder_NestedStructures(t *testing.T) {
	schema := decoderSchema(
		core.Field{Name: "State", Type: core.FieldTypeString, Nullable: true},
		core.Field{Name: "Owner", Type: core.FieldTypeRecord, Nullable: true, Fields: []core.Field{
			{Name: "UserId", Type: core.FieldTypeString, Nullable: true},
			{Name: "SourceSystem", Type: core.FieldTypeString, Nullable: true},
		}},
		core.Field{Name: "Suppliers", Type: core.FieldTypeArray, Nullable: true, Fields: []core.Field{
			{Name: "SupplierId", Type: core.FieldTypeString, Nullable: true},
		}},
	)
	d := NewRecordDecoder(schema)

	raw := map[string]interface{}{
		"State": "Active",
		"Owner": map[string]interface{}{
			"UserId":       "customersupportadmin",
			"SourceSystem": "ASM",
		},
		"Suppliers": []interface{}{
			map[string]interface{}{
				"Suppliers": map[string]interface{}{"SupplierId": "S1"},
			},
			map[string]interface{}{
				"Suppliers": map[string]interface{}{"SupplierId": "S2"},
			},
		},
	}

	out, err := d.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "Active", out["State"])

	owner := out["Owner"].(map[string]interface{})
	assert.Equal(t, "customersupportadmin", owner["UserId"])
	assert.Equal(t, "ASM", owner["SourceSystem"])

	suppliers := out["Suppliers"].([]interface{})
	require.Len(t, suppliers, 2)
	assert.Equal(t, "S1", suppliers[0].(map[string]interface{})["SupplierId"])
	assert.Equal(t, "S2", suppliers[1].(map[string]interface{})["SupplierId"])
}

func TestRecordDecoder_ArrayOfStrings(t *testing.T) {
	d := NewRecordDecoder(decoderSchema(core.Field{
		Name: "Tags", Type: core.FieldTypeArray, Nullable: true,
	}))

	out, err := d.Decode(map[string]interface{}{
		"Tags": []interface{}{"a", "b", nil},
	})
	require.NoError(t, err)

	tags := out["Tags"].([]interface{})
	assert.Equal(t, []interface{}{"a", "b", nil}, tags)
}
