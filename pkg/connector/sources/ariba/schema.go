package ariba

import (
	"time"

	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
)

// sourceTypeMapping maps the service's declared scalar types to
// output field types. Date strings carry a time component on the
// wire, so they map to timestamp rather than a plain date.
var sourceTypeMapping = map[string]core.FieldType{
	"number":  core.FieldTypeDouble,
	"boolean": core.FieldTypeBool,
	"string":  core.FieldTypeString,
	"date":    core.FieldTypeTimestamp,
}

// BuildSchema turns classified field metadata into a typed schema.
// Field order in the output matches input order.
func BuildSchema(name string, fields []FieldMetadata) *core.Schema {
	schemaFields := make([]core.Field, 0, len(fields))
	for _, fm := range fields {
		schemaFields = append(schemaFields, buildSchemaField(fm))
	}
	return &core.Schema{
		Name:      name,
		Fields:    schemaFields,
		Version:   1,
		CreatedAt: time.Now(),
	}
}

func buildSchemaField(fm FieldMetadata) core.Field {
	if len(fm.Children) > 0 {
		children := make([]core.Field, 0, len(fm.Children))
		for _, child := range fm.Children {
			children = append(children, buildSchemaField(child))
		}

		fieldType := core.FieldTypeRecord
		if fm.Kind == FieldKindArray {
			fieldType = core.FieldTypeArray
		}
		return core.Field{
			Name:     fm.Name,
			Type:     fieldType,
			Nullable: true,
			Fields:   children,
		}
	}

	return core.Field{
		Name:      fm.Name,
		Type:      scalarFieldType(fm),
		Nullable:  !fm.PrimaryKey,
		Primary:   fm.PrimaryKey,
		Size:      fm.Size,
		Precision: fm.Precision,
		Scale:     fm.Scale,
	}
}

// scalarFieldType resolves the output type for a field without
// children. An unmapped array type becomes an array of strings; any
// other unmapped type falls back to string.
func scalarFieldType(fm FieldMetadata) core.FieldType {
	if ft, ok := sourceTypeMapping[fm.Type]; ok {
		return ft
	}
	if fm.Kind == FieldKindArray {
		return core.FieldTypeArray
	}
	return core.FieldTypeString
}
