package ariba

import (
	"net/url"
	"strings"
)

// API path roots. Every request carries the tenant realm and the
// system type (prod / sandbox style environment selector) because the
// remote service routes on both.
const (
	metadataPath  = "api/analytics-reporting-view/v1"
	jobPath       = "api/analytics-reporting-job/v1"
	jobResultPath = "api/analytics-reporting-jobresult/v1"

	segmentMetadata      = "metadata"
	segmentViewTemplates = "viewTemplates"
	segmentJobs          = "jobs"
	segmentFiles         = "files"

	paramProduct          = "product"
	paramRealm            = "realm"
	paramJSONSchema       = "jsonSchema"
	paramViewTemplateName = "viewTemplateName"
	paramDocumentType     = "documentType"
	paramPageToken        = "pageToken"

	productAnalytics = "analytics"
)

// Endpoints builds request URLs for the analytics-reporting API
// surface from the configured base URL, system type, and realm.
type Endpoints struct {
	baseURL    string
	systemType string
	realm      string
}

// NewEndpoints creates an endpoint builder. A trailing slash on the
// base URL is tolerated.
func NewEndpoints(baseURL, systemType, realm string) *Endpoints {
	return &Endpoints{
		baseURL:    strings.TrimRight(baseURL, "/"),
		systemType: systemType,
		realm:      realm,
	}
}

func (e *Endpoints) build(segments []string, query url.Values) string {
	var sb strings.Builder
	sb.WriteString(e.baseURL)
	for _, seg := range segments {
		for _, part := range strings.Split(seg, "/") {
			sb.WriteByte('/')
			sb.WriteString(url.PathEscape(part))
		}
	}
	if len(query) > 0 {
		sb.WriteByte('?')
		sb.WriteString(query.Encode())
	}
	return sb.String()
}

func (e *Endpoints) metadataQuery() url.Values {
	q := url.Values{}
	q.Set(paramProduct, productAnalytics)
	q.Set(paramRealm, e.realm)
	return q
}

// ViewMetadata returns the metadata URL for a view template with the
// JSON schema flag set, used for the primary field discovery call.
func (e *Endpoints) ViewMetadata(templateName string) string {
	q := e.metadataQuery()
	q.Set(paramJSONSchema, "true")
	q.Set(paramViewTemplateName, templateName)
	return e.build([]string{metadataPath, e.systemType, segmentMetadata}, q)
}

// ViewSelectFields returns the metadata URL without the JSON schema
// flag. The response carries the template's selectFields listing,
// which maps array fields to their element document types.
func (e *Endpoints) ViewSelectFields(templateName string) string {
	q := e.metadataQuery()
	q.Set(paramViewTemplateName, templateName)
	return e.build([]string{metadataPath, e.systemType, segmentMetadata}, q)
}

// DocumentMetadata returns the metadata URL for a named document type,
// used to resolve the element shape of array fields.
func (e *Endpoints) DocumentMetadata(documentType string) string {
	q := e.metadataQuery()
	q.Set(paramJSONSchema, "true")
	q.Set(paramDocumentType, documentType)
	return e.build([]string{metadataPath, e.systemType, segmentMetadata}, q)
}

// FilterExpressions returns the view template URL whose response
// lists the template's declared filter expressions.
func (e *Endpoints) FilterExpressions(templateName string) string {
	return e.build(
		[]string{metadataPath, e.systemType, segmentViewTemplates, templateName},
		e.metadataQuery(),
	)
}

// JobSubmit returns the job submission URL. An empty pageToken still
// appears in the query, matching the service's expectations for the
// first page.
func (e *Endpoints) JobSubmit(pageToken string) string {
	q := url.Values{}
	q.Set(paramRealm, e.realm)
	q.Set(paramPageToken, pageToken)
	return e.build([]string{jobPath, e.systemType, segmentJobs}, q)
}

// JobStatus returns the job result status URL for a job.
func (e *Endpoints) JobStatus(jobID string) string {
	q := url.Values{}
	q.Set(paramRealm, e.realm)
	return e.build([]string{jobResultPath, e.systemType, segmentJobs, jobID}, q)
}

// JobFile returns the download URL for one file produced by a job.
// The response body is a zip archive holding a single JSON document.
func (e *Endpoints) JobFile(jobID, fileName string) string {
	q := url.Values{}
	q.Set(paramRealm, e.realm)
	return e.build([]string{jobResultPath, e.systemType, segmentJobs, jobID, segmentFiles, fileName}, q)
}
