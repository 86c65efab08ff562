// Package pool provides object pooling for the record processing path.
// It offers type-safe pooling with automatic object recycling, reducing
// garbage collection pressure when decoding large result files.
//
// Example usage:
//
//	record := pool.GetRecord()
//	defer record.Release()
//
//	record.SetData("Region", "EMEA")
package pool

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The reset function is called before returning an object to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse, resetting it first when a
// reset function was provided.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits)
}

// RecordMetadata carries provenance for a decoded record. All fields are
// optional.
type RecordMetadata struct {
	// Source identifies the connector that produced the record
	Source string `json:"source,omitempty"`
	// ViewTemplate names the reporting view the record came from
	ViewTemplate string `json:"view_template,omitempty"`
	// JobID identifies the extraction job that produced the record
	JobID string `json:"job_id,omitempty"`
	// FileName names the result file the record was decoded from
	FileName string `json:"file_name,omitempty"`
	// Offset is the record's index within its result file
	Offset int64 `json:"offset,omitempty"`
	// Timestamp when the record was decoded
	Timestamp time.Time `json:"timestamp"`
	// Custom metadata fields for extensibility
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unified record type flowing through the pipeline.
// Records should be obtained from the global pool using GetRecord()
// rather than created directly.
type Record struct {
	// ID is a unique identifier for the record
	ID string `json:"id"`
	// Data contains the typed record payload
	Data map[string]interface{} `json:"data"`
	// Metadata contains provenance and timing information
	Metadata RecordMetadata `json:"metadata"`
}

var (
	// RecordPool provides pooling for Record objects. Records are
	// pre-allocated with a 16-capacity data map and fully cleared on return.
	RecordPool = New(
		func() *Record {
			return &Record{
				Data: make(map[string]interface{}, 16),
			}
		},
		func(r *Record) {
			r.ID = ""
			for k := range r.Data {
				delete(r.Data, k)
			}
			if r.Metadata.Custom != nil {
				for k := range r.Metadata.Custom {
					delete(r.Metadata.Custom, k)
				}
			}
			r.Metadata = RecordMetadata{}
		},
	)

	// MapPool provides pooling for map[string]interface{} objects.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// BatchSlicePool provides pooling for record batches.
	BatchSlicePool = New(
		func() []*Record {
			return make([]*Record, 0, 1000)
		},
		func(s []*Record) {
			for i := range s {
				s[i] = nil
			}
		},
	)
)

// idCounter provides atomic unique ID generation
var idCounter uint64

// GetRecord retrieves a Record from the global pool with a fresh
// timestamp. Records must be returned using record.Release() when done.
func GetRecord() *Record {
	r := RecordPool.Get()
	r.Metadata.Timestamp = time.Now()
	return r
}

// PutRecord returns a Record to the global pool for reuse, returning
// nested maps to their pools. Safe to call with nil.
func PutRecord(record *Record) {
	if record != nil {
		if record.Metadata.Custom != nil {
			PutMap(record.Metadata.Custom)
			record.Metadata.Custom = nil
		}
		RecordPool.Put(record)
	}
}

// GetMap retrieves an empty map[string]interface{} from the global pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the global pool for reuse. Safe to call with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GetBatchSlice retrieves a record batch slice with at least the
// requested capacity. The returned slice always has zero length.
func GetBatchSlice(capacity int) []*Record {
	batch := BatchSlicePool.Get()
	if cap(batch) < capacity {
		batch = make([]*Record, 0, capacity)
	}
	return batch[:0]
}

// PutBatchSlice returns a batch slice to the global pool for reuse.
// Safe to call with nil.
func PutBatchSlice(batch []*Record) {
	if batch != nil {
		BatchSlicePool.Put(batch)
	}
}

// GenerateID generates a unique ID of the form "prefix-number".
// Safe for concurrent use.
func GenerateID(prefix string) string {
	id := atomic.AddUint64(&idCounter, 1)

	buf := make([]byte, 0, len(prefix)+21)
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)

	return string(buf)
}

// appendUint64 efficiently appends uint64 to byte slice
func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	start := len(buf)
	buf = buf[:start+digits]

	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}

	return buf
}

// SetData sets a data field in the record, initializing the data map
// from the pool if needed.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Data[key] = value
}

// GetData retrieves a data field from the record.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field, initializing the metadata
// map from the pool if needed.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field from the record.
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// Release returns the record and its resources to the pools.
// Call it when the record is no longer needed, typically with defer.
func (r *Record) Release() {
	PutRecord(r)
}

// NewRecordFromPool creates a new record using pooled resources with a
// unique ID and the given source. The caller should call Release when done.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Metadata.Source = source
	return r
}
