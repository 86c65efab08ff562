package ariba

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/json"
)

// FieldKind classifies a discovered field by its declared type list.
type FieldKind string

const (
	// FieldKindSimple is a scalar field carrying size/precision/scale
	FieldKindSimple FieldKind = "simple"
	// FieldKindObject is a nested document parsed from the same call
	FieldKindObject FieldKind = "object"
	// FieldKindArray is a list of nested documents whose shape is
	// resolved through a secondary metadata call
	FieldKindArray FieldKind = "array"
)

const (
	typeTagObject = "object"
	typeTagArray  = "array"
)

// FieldMetadata describes one discovered view template field.
// Children is populated only for object and array kinds.
type FieldMetadata struct {
	ViewTemplate string
	Name         string
	Kind         FieldKind
	Type         string
	Size         int
	Precision    int
	Scale        int
	PrimaryKey   bool
	CustomField  bool
	Children     []FieldMetadata
}

// fieldProperty is the wire shape of one entry in a metadata
// response's properties map.
type fieldProperty struct {
	Title        string                   `json:"title"`
	Type         []string                 `json:"type"`
	Size         int                      `json:"size"`
	Precision    int                      `json:"precision"`
	Scale        int                      `json:"scale"`
	IsPrimaryKey bool                     `json:"isPrimaryKey"`
	Properties   map[string]fieldProperty `json:"properties"`
}

type metadataResponse struct {
	Properties map[string]fieldProperty `json:"properties"`
	Message    string                   `json:"message"`
}

type selectField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type selectFieldsResponse struct {
	SelectFields []selectField `json:"selectFields"`
}

func (p fieldProperty) hasType(tag string) bool {
	for _, t := range p.Type {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// MetadataInspector discovers and classifies the field metadata of a
// view template. Simple and object fields come out of the primary
// metadata call; array fields need the template's selectFields listing
// to find each element's document type, then one further metadata call
// per document type to fetch its properties.
type MetadataInspector struct {
	transport Caller
	endpoints *Endpoints
	logger    *zap.Logger
}

// NewMetadataInspector creates a metadata inspector.
func NewMetadataInspector(transport Caller, endpoints *Endpoints, logger *zap.Logger) *MetadataInspector {
	return &MetadataInspector{
		transport: transport,
		endpoints: endpoints,
		logger:    logger.With(zap.String("component", "metadata_inspector")),
	}
}

// FetchFieldMetadata fetches and classifies the field metadata for a
// view template. The result is ordered simple fields first, object
// fields next, array fields last, alphabetically within each group.
func (mi *MetadataInspector) FetchFieldMetadata(ctx context.Context, templateName string) ([]FieldMetadata, error) {
	resp, err := mi.fetchMetadata(ctx, mi.endpoints.ViewMetadata(templateName))
	if err != nil {
		return nil, err
	}

	fields := simpleFields(resp.Properties, templateName)
	fields = append(fields, mi.objectFields(resp.Properties, templateName)...)

	arrays, err := mi.arrayFields(ctx, resp.Properties, templateName)
	if err != nil {
		return nil, err
	}
	fields = append(fields, arrays...)

	mi.logger.Info("field metadata discovered",
		zap.String("view_template", templateName),
		zap.Int("fields", len(fields)))

	return fields, nil
}

func (mi *MetadataInspector) fetchMetadata(ctx context.Context, url string) (*metadataResponse, error) {
	rc, err := mi.transport.Get(ctx, url, "metadata")
	if err != nil {
		return nil, err
	}

	var resp metadataResponse
	if rc.StatusCode != http.StatusOK {
		// Error bodies still parse; surface the service message when present
		_ = json.Unmarshal(rc.Body, &resp)
		msg := resp.Message
		if msg == "" {
			msg = "metadata not found"
		}
		return nil, errors.New(errors.ErrorTypeMetadata, msg).WithCode(rc.StatusCode)
	}

	if err := json.Unmarshal(rc.Body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMetadata, "failed to parse metadata response")
	}
	return &resp, nil
}

// simpleFields extracts scalar fields from a properties map. The field
// name comes from the property title, trimmed to the leaf segment when
// dotted.
func simpleFields(properties map[string]fieldProperty, templateName string) []FieldMetadata {
	fields := make([]FieldMetadata, 0, len(properties))
	for _, key := range sortedKeys(properties) {
		prop := properties[key]
		if prop.hasType(typeTagObject) || prop.hasType(typeTagArray) || len(prop.Type) == 0 {
			continue
		}

		name := prop.Title
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}

		fields = append(fields, FieldMetadata{
			ViewTemplate: templateName,
			Name:         name,
			Kind:         FieldKindSimple,
			Type:         prop.Type[0],
			Size:         prop.Size,
			Precision:    prop.Precision,
			Scale:        prop.Scale,
			PrimaryKey:   prop.IsPrimaryKey,
		})
	}
	return fields
}

// objectFields extracts nested-object fields; their children are the
// scalar properties carried inline in the same response.
func (mi *MetadataInspector) objectFields(properties map[string]fieldProperty, templateName string) []FieldMetadata {
	var fields []FieldMetadata
	for _, key := range sortedKeys(properties) {
		prop := properties[key]
		if !prop.hasType(typeTagObject) {
			continue
		}

		fields = append(fields, FieldMetadata{
			ViewTemplate: templateName,
			Name:         key,
			Kind:         FieldKindObject,
			Type:         typeTagObject,
			Children:     simpleFields(prop.Properties, templateName),
		})
	}
	return fields
}

// arrayFields extracts nested-array fields. The element document type
// of an array field named N is listed in the template's selectFields
// under the entry "N.N"; its own properties come from a dedicated
// metadata call. Only one level of array nesting is resolved.
func (mi *MetadataInspector) arrayFields(ctx context.Context, properties map[string]fieldProperty, templateName string) ([]FieldMetadata, error) {
	var arrayNames []string
	for _, key := range sortedKeys(properties) {
		if properties[key].hasType(typeTagArray) {
			arrayNames = append(arrayNames, key)
		}
	}
	if len(arrayNames) == 0 {
		return nil, nil
	}

	rc, err := mi.transport.Get(ctx, mi.endpoints.ViewSelectFields(templateName), "metadata")
	if err != nil {
		return nil, err
	}
	var full selectFieldsResponse
	if err := json.Unmarshal(rc.Body, &full); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMetadata, "failed to parse select fields response")
	}

	var fields []FieldMetadata
	for _, name := range arrayNames {
		docType, ok := lookupDocumentType(full.SelectFields, name)
		if !ok {
			mi.logger.Warn("array field has no select fields entry, skipping",
				zap.String("view_template", templateName),
				zap.String("field", name))
			continue
		}

		doc, err := mi.fetchMetadata(ctx, mi.endpoints.DocumentMetadata(docType))
		if err != nil {
			return nil, err
		}

		fields = append(fields, FieldMetadata{
			ViewTemplate: templateName,
			Name:         name,
			Kind:         FieldKindArray,
			Type:         typeTagArray,
			Children:     simpleFields(doc.Properties, templateName),
		})
	}
	return fields, nil
}

// lookupDocumentType finds the element document type of an array field
// in a selectFields listing, matching the "name.name" convention.
func lookupDocumentType(selectFields []selectField, fieldName string) (string, bool) {
	want := fmt.Sprintf("%s.%s", fieldName, fieldName)
	for _, sf := range selectFields {
		if strings.EqualFold(sf.Name, want) {
			return sf.Type, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]fieldProperty) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
