// Package core defines the connector contracts: the Source interface,
// the nested Schema model, and the record stream types that carry
// decoded records to downstream consumers.
package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/pool"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
)

// State represents connector state
type State map[string]interface{}

// Schema represents the derived data schema for a reporting view.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
	Version     int
	CreatedAt   time.Time
}

// Field represents a field in the schema. Record and array fields carry
// their child fields in Fields; scalar fields leave it empty.
type Field struct {
	Name      string
	Type      FieldType
	Nullable  bool
	Primary   bool
	Precision int
	Scale     int
	Size      int
	Fields    []Field
}

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeLong      FieldType = "long"
	FieldTypeDouble    FieldType = "double"
	FieldTypeBool      FieldType = "bool"
	FieldTypeDecimal   FieldType = "decimal"
	FieldTypeDate      FieldType = "date"
	FieldTypeTime      FieldType = "time"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeBytes     FieldType = "bytes"
	FieldTypeRecord    FieldType = "record"
	FieldTypeArray     FieldType = "array"
)

// FieldByName returns the schema field with the given name.
func (s *Schema) FieldByName(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// RecordStream represents a stream of records
type RecordStream struct {
	Records <-chan *pool.Record
	Errors  <-chan error
}

// BatchStream represents a stream of record batches
type BatchStream struct {
	Batches <-chan []*pool.Record
	Errors  <-chan error
}

// Source is the interface that all source connectors must implement
type Source interface {
	// Core functionality
	Initialize(ctx context.Context, cfg *config.Config) error
	Discover(ctx context.Context) (*Schema, error)
	Read(ctx context.Context) (*RecordStream, error)
	ReadBatch(ctx context.Context, batchSize int) (*BatchStream, error)
	Close(ctx context.Context) error

	// State management
	GetState() State
	SetState(state State) error

	// Capabilities
	SupportsIncremental() bool
	SupportsBatch() bool

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface for all connectors
type Connector interface {
	// Metadata
	Name() string
	Type() ConnectorType
	Version() string

	// Lifecycle
	Initialize(ctx context.Context, cfg *config.Config) error
	Close(ctx context.Context) error

	// Health and monitoring
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// ProgressReporter reports progress of operations
type ProgressReporter interface {
	ReportProgress(processed int64, total int64)
	ReportThroughput(recordsPerSecond float64)
	GetProgress() (processed int64, total int64)
}
