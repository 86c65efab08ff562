package ariba

import (
	"bytes"
	"context"
	gojson "encoding/json"
	"io"
	"net/http"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
)

// FileDownloader fetches one result file of a completed extraction
// job and parses it into raw records. The response body is a zip
// archive holding a single JSON document; the whole document is
// parsed in memory, there is no streaming.
type FileDownloader struct {
	transport Caller
	endpoints *Endpoints
	logger    *zap.Logger
}

// NewFileDownloader creates a file downloader.
func NewFileDownloader(transport Caller, endpoints *Endpoints, logger *zap.Logger) *FileDownloader {
	return &FileDownloader{
		transport: transport,
		endpoints: endpoints,
		logger:    logger.With(zap.String("component", "file_downloader")),
	}
}

// FetchRecords downloads the split's file and returns its raw
// records. Numbers stay in their text form so the decoder applies its
// own precision rules.
func (fd *FileDownloader) FetchRecords(ctx context.Context, split Split) ([]map[string]interface{}, error) {
	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()

	rc, err := fd.transport.Get(ctx, fd.endpoints.JobFile(split.JobID, split.FileName), "file")
	if err != nil {
		return nil, err
	}
	if rc.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrorTypeData, rc.Message()).WithCode(rc.StatusCode)
	}

	doc, err := readZippedDocument(rc.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read result file").
			WithDetail("job_id", split.JobID).
			WithDetail("file", split.FileName)
	}

	records, err := extractRecords(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected result document shape").
			WithDetail("job_id", split.JobID).
			WithDetail("file", split.FileName)
	}

	fd.logger.Info("result file parsed",
		zap.String("job_id", split.JobID),
		zap.String("file", split.FileName),
		zap.Int("records", len(records)))

	return records, nil
}

// readZippedDocument opens the zip archive and parses the first entry
// as one JSON document.
func readZippedDocument(body []byte) (interface{}, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "result archive is empty")
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// extractRecords flattens the parsed document into its records. The
// usual document root is an array; a "Records" wrapper object is also
// accepted, and a bare object counts as a single record.
func extractRecords(doc interface{}) ([]map[string]interface{}, error) {
	switch v := doc.(type) {
	case []interface{}:
		return recordList(v)
	case map[string]interface{}:
		if inner, ok := v["Records"].([]interface{}); ok {
			return recordList(inner)
		}
		return []map[string]interface{}{v}, nil
	case nil:
		return nil, nil
	default:
		return nil, errors.New(errors.ErrorTypeData, "result document is not an array or object")
	}
}

func recordList(elements []interface{}) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0, len(elements))
	for _, elem := range elements {
		rec, ok := elem.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrorTypeData, "result record is not an object")
		}
		records = append(records, rec)
	}
	return records, nil
}
