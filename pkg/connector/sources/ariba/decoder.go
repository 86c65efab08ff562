package ariba

import (
	gojson "encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

const (
	dateLayout       = "20060102"
	timeLayout       = "15:04:05"
	sentinelPrefix   = "0000"
	invalidTimeValue = "240000"
)

// RecordDecoder converts raw JSON records into typed records
// conforming to a discovered schema. The walk is schema-directed:
// each schema field pulls the same-named raw value and dispatches on
// the field's declared type, not on the shape of the JSON node.
type RecordDecoder struct {
	schema *core.Schema
}

// NewRecordDecoder creates a decoder bound to a schema.
func NewRecordDecoder(schema *core.Schema) *RecordDecoder {
	return &RecordDecoder{schema: schema}
}

// Decode converts one raw record. Any coercion failure aborts the
// record with a conversion error naming the field, the offending
// value, and the target type.
func (d *RecordDecoder) Decode(raw map[string]interface{}) (map[string]interface{}, error) {
	return decodeFields(raw, d.schema.Fields)
}

func decodeFields(raw map[string]interface{}, fields []core.Field) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for i := range fields {
		field := &fields[i]
		value, err := decodeField(raw[field.Name], field)
		if err != nil {
			return nil, err
		}
		out[field.Name] = value
	}
	return out, nil
}

func decodeField(rawValue interface{}, field *core.Field) (interface{}, error) {
	if rawValue == nil {
		return nil, nil
	}

	switch v := rawValue.(type) {
	case map[string]interface{}:
		if len(field.Fields) > 0 {
			return decodeFields(v, field.Fields)
		}
		return nil, conversionError(field, "<object>")
	case []interface{}:
		return decodeArray(v, field)
	default:
		return decodeScalar(scalarText(v), field)
	}
}

// decodeArray maps the decode over each element. Array elements wrap
// the actual document under a member named after the field, e.g.
// {"Suppliers": [{"Suppliers": {...}}]}.
func decodeArray(elements []interface{}, field *core.Field) (interface{}, error) {
	out := make([]interface{}, 0, len(elements))

	if len(field.Fields) == 0 {
		// Array of plain strings, no nested document shape
		for _, elem := range elements {
			if elem == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, scalarText(elem))
		}
		return out, nil
	}

	for _, elem := range elements {
		wrapper, ok := elem.(map[string]interface{})
		if !ok {
			return nil, conversionError(field, scalarText(elem))
		}
		inner, ok := wrapper[field.Name].(map[string]interface{})
		if !ok {
			// Element not wrapped; decode it directly
			inner = wrapper
		}
		decoded, err := decodeFields(inner, field.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// scalarText normalizes a scalar JSON value to its text form, the way
// the service serializes every field value.
func scalarText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case gojson.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// decodeScalar coerces one scalar string to the field's target type.
// Null or blank values are preserved verbatim, never coerced.
func decodeScalar(value string, field *core.Field) (interface{}, error) {
	if strings.TrimSpace(value) == "" {
		return value, nil
	}
	trimmed := strings.TrimSpace(value)

	switch field.Type {
	case core.FieldTypeString:
		return value, nil

	case core.FieldTypeBool:
		return strings.EqualFold(trimmed, "true"), nil

	case core.FieldTypeInt:
		n, err := strconv.ParseInt(moveTrailingMinus(trimmed), 10, 32)
		if err != nil {
			return nil, conversionError(field, value)
		}
		return int32(n), nil

	case core.FieldTypeLong:
		n, err := strconv.ParseInt(moveTrailingMinus(trimmed), 10, 64)
		if err != nil {
			return nil, conversionError(field, value)
		}
		return n, nil

	case core.FieldTypeDouble:
		f, err := strconv.ParseFloat(moveTrailingMinus(trimmed), 64)
		if err != nil {
			return nil, conversionError(field, value)
		}
		return f, nil

	case core.FieldTypeDecimal:
		dec, err := decimal.NewFromString(moveTrailingMinus(trimmed))
		if err != nil {
			return nil, conversionError(field, value)
		}
		return dec.Round(int32(field.Scale)), nil

	case core.FieldTypeDate:
		if strings.HasPrefix(trimmed, sentinelPrefix) {
			return nil, nil
		}
		t, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return nil, conversionError(field, value)
		}
		return t, nil

	case core.FieldTypeTime:
		return decodeTime(trimmed, field)

	case core.FieldTypeTimestamp:
		if strings.HasPrefix(trimmed, sentinelPrefix) {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, strings.Replace(trimmed, " ", "T", 1))
		if err != nil {
			return nil, conversionError(field, value)
		}
		return t, nil

	case core.FieldTypeBytes:
		return []byte(trimmed), nil

	default:
		return nil, conversionError(field, value)
	}
}

// decodeTime parses an HHmmss value. The value 240000 is the
// service's end-of-day marker and rolls over to midnight; any other
// out-of-range value fails.
func decodeTime(value string, field *core.Field) (interface{}, error) {
	if value == invalidTimeValue {
		value = "000000"
	}
	if len(value) != 6 {
		return nil, conversionError(field, value)
	}

	withColons := value[:2] + ":" + value[2:4] + ":" + value[4:]
	t, err := time.Parse(timeLayout, withColons)
	if err != nil {
		return nil, conversionError(field, value)
	}
	return t, nil
}

// moveTrailingMinus moves a trailing minus sign to the front. Some
// profile settings on the service side emit negative numbers as
// "12345-".
func moveTrailingMinus(value string) string {
	if strings.HasSuffix(value, "-") {
		return "-" + value[:len(value)-1]
	}
	return value
}

func conversionError(field *core.Field, value string) error {
	return errors.New(errors.ErrorTypeConversion, "failed to convert field value").
		WithDetail("field", field.Name).
		WithDetail("value", value).
		WithDetail("target_type", string(field.Type))
}
