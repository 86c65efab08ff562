package ariba

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/clients"
	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/connector/base"
	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
	"github.com/ajitpratap0/aribaflow/pkg/pool"
)

const sourceName = "ariba"

// Source extracts reporting data from the analytics-reporting API.
// Discovery resolves the view template's schema; Read runs the job
// chain sequentially to build the file manifest, then fans the files
// out to concurrent download workers that decode records against the
// discovered schema.
type Source struct {
	*base.BaseConnector

	endpoints  *Endpoints
	httpClient *clients.HTTPClient
	tokens     *clients.TokenProvider
	transport  *Transport
	inspector  *MetadataInspector
	jobs       *ExtractionJobController
	downloader *FileDownloader

	schema   *core.Schema
	schemaMu sync.Mutex
}

// NewSource creates an uninitialized source connector.
func NewSource() *Source {
	return &Source{
		BaseConnector: base.NewBaseConnector(sourceName, core.ConnectorTypeSource),
	}
}

// Initialize builds the client stack from the configuration.
func (s *Source) Initialize(ctx context.Context, cfg *config.Config) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	log := s.Logger()

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.ConnectTimeout = cfg.Timeouts.Connect
	httpCfg.ReadTimeout = cfg.Timeouts.Read
	httpCfg.WriteTimeout = cfg.Timeouts.Write
	s.httpClient = clients.NewHTTPClient(httpCfg, log)

	s.tokens = clients.NewTokenProvider(clients.Credentials{
		TokenURL:     cfg.Connection.TokenURL,
		ClientID:     cfg.Connection.ClientID,
		ClientSecret: cfg.Connection.ClientSecret,
	}, cfg.Timeouts.Connect, log)

	if hc := s.HealthChecker(); hc != nil {
		hc.RegisterCheck("token_endpoint", func(ctx context.Context) error {
			_, err := s.tokens.GetAccessToken(ctx)
			return err
		})
	}

	governor := clients.NewGovernor(cfg.Retry.WaitOnRateLimit, log)
	s.endpoints = NewEndpoints(cfg.Connection.BaseURL, cfg.Connection.SystemType, cfg.Connection.Realm)
	s.transport = NewTransport(s.httpClient, s.tokens, governor, s.RetryPolicy(), cfg.Connection.APIKey, log)
	s.inspector = NewMetadataInspector(s.transport, s.endpoints, log)
	s.jobs = NewExtractionJobController(s.transport, s.endpoints, cfg.Extraction, cfg.Timeouts.PollInterval, log)
	s.downloader = NewFileDownloader(s.transport, s.endpoints, log)

	return nil
}

// Discover fetches the view template's field metadata and derives the
// typed schema. The schema is cached for the lifetime of the source.
func (s *Source) Discover(ctx context.Context) (*core.Schema, error) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schema != nil {
		return s.schema, nil
	}

	template := s.Config().Extraction.ViewTemplateName
	fields, err := s.inspector.FetchFieldMetadata(ctx, template)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrorTypeMetadata, "view template has no fields").
			WithDetail("view_template", template)
	}

	s.schema = BuildSchema(template, fields)
	return s.schema, nil
}

// Read runs the extraction and streams decoded records. The job chain
// is sequential because each page's job depends on the previous page's
// token; the per-file downloads run on concurrent workers once the
// manifest is complete.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	schema, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.Config()
	records := make(chan *pool.Record, cfg.Performance.BufferSize)
	errs := make(chan error, cfg.Performance.GetWorkers())

	go func() {
		defer close(records)
		defer close(errs)

		splits, err := s.jobs.EnumerateSplits(ctx)
		if err != nil {
			errs <- err
			return
		}
		if len(splits) == 0 {
			s.Logger().Info("extraction produced no files",
				zap.String("view_template", cfg.Extraction.ViewTemplateName))
			return
		}

		progress := base.NewProgressReporter(s.Logger(), cfg.Extraction.ViewTemplateName)
		progress.Start()
		defer progress.Stop()

		s.processSplits(ctx, schema, splits, progress, records, errs)
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// processSplits distributes the splits over download workers. A split
// that fails aborts only its own file; the other workers drain.
func (s *Source) processSplits(
	ctx context.Context,
	schema *core.Schema,
	splits []Split,
	progress *base.ProgressReporter,
	records chan<- *pool.Record,
	errs chan<- error,
) {
	cfg := s.Config()
	template := cfg.Extraction.ViewTemplateName
	decoder := NewRecordDecoder(schema)

	work := make(chan Split)
	var wg sync.WaitGroup

	workers := cfg.Performance.GetWorkers()
	if workers > len(splits) {
		workers = len(splits)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for split := range work {
				if err := s.processSplit(ctx, decoder, template, split, progress, records); err != nil {
					select {
					case errs <- err:
					case <-ctx.Done():
					}
				}
			}
		}()
	}

	for _, split := range splits {
		select {
		case work <- split:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		}
	}
	close(work)
	wg.Wait()
}

// processSplit downloads one result file and decodes its records.
func (s *Source) processSplit(
	ctx context.Context,
	decoder *RecordDecoder,
	template string,
	split Split,
	progress *base.ProgressReporter,
	records chan<- *pool.Record,
) error {
	raws, err := s.downloader.FetchRecords(ctx, split)
	if err != nil {
		return err
	}

	for i, raw := range raws {
		decoded, err := decoder.Decode(raw)
		if err != nil {
			metrics.RecordsDecoded.WithLabelValues(template, "failure").Inc()
			return err
		}
		metrics.RecordsDecoded.WithLabelValues(template, "success").Inc()

		rec := pool.NewRecordFromPool(sourceName)
		for k, v := range decoded {
			rec.Data[k] = v
		}
		rec.Metadata.ViewTemplate = template
		rec.Metadata.JobID = split.JobID
		rec.Metadata.FileName = split.FileName
		rec.Metadata.Offset = int64(i)

		select {
		case records <- rec:
			progress.IncrementProcessed(1)
		case <-ctx.Done():
			rec.Release()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "read canceled")
		}
	}
	return nil
}

// ReadBatch streams records grouped into batches of the given size.
func (s *Source) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	stream, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = s.Config().Performance.BatchSize
	}
	return batchRecords(ctx, stream, batchSize), nil
}

// batchRecords groups records from a stream into slices of up to batchSize.
// Sends into the error channel stay cancellable so a slow or absent consumer
// never wedges the goroutine.
func batchRecords(ctx context.Context, stream *core.RecordStream, batchSize int) *core.BatchStream {
	batches := make(chan []*pool.Record, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(batches)
		defer close(errs)

		batch := pool.GetBatchSlice(batchSize)
		flush := func() {
			if len(batch) > 0 {
				batches <- batch
				batch = pool.GetBatchSlice(batchSize)
			}
		}

		for {
			select {
			case rec, ok := <-stream.Records:
				if !ok {
					flush()
					return
				}
				batch = append(batch, rec)
				if len(batch) >= batchSize {
					flush()
				}
			case err, ok := <-stream.Errors:
				if ok && err != nil {
					select {
					case errs <- err:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				flush()
				return
			}
		}
	}()

	return &core.BatchStream{Batches: batches, Errors: errs}
}

// SupportsIncremental reports false; each run re-extracts the
// configured date window.
func (s *Source) SupportsIncremental() bool { return false }

// SupportsBatch reports true.
func (s *Source) SupportsBatch() bool { return true }

// Health verifies the connector and its HTTP client are usable.
func (s *Source) Health(ctx context.Context) error {
	return s.BaseConnector.Health(ctx)
}

// Metrics merges the base connector metrics with client statistics.
func (s *Source) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()
	if s.httpClient != nil {
		stats := s.httpClient.GetStats()
		m["http_requests"] = stats.TotalRequests
		m["http_failures"] = stats.FailedRequests
	}
	if s.tokens != nil {
		requests, failures := s.tokens.Stats()
		m["token_requests"] = requests
		m["token_failures"] = failures
	}
	return m
}

// Close releases the HTTP client and base resources.
func (s *Source) Close(ctx context.Context) error {
	if s.httpClient != nil {
		if err := s.httpClient.Close(); err != nil {
			s.Logger().Warn("failed to close http client", zap.Error(err))
		}
	}
	return s.BaseConnector.Close(ctx)
}
