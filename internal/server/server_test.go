package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnfeed/veracode-ingest/internal/config"
	"github.com/vulnfeed/veracode-ingest/internal/domain"
	"github.com/vulnfeed/veracode-ingest/internal/importer"
	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
	"github.com/vulnfeed/veracode-ingest/internal/veracode"
)

type fakeImportRepo struct {
	interfaces.ImportRepository

	runs map[uuid.UUID]*domain.ImportRun
}

func newFakeImportRepo() *fakeImportRepo {
	return &fakeImportRepo{runs: map[uuid.UUID]*domain.ImportRun{}}
}

func (f *fakeImportRepo) Create(_ context.Context, run *domain.ImportRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeImportRepo) Update(_ context.Context, run *domain.ImportRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeImportRepo) Get(_ context.Context, id uuid.UUID) (*domain.ImportRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, assert.AnError
	}
	return run, nil
}

func (f *fakeImportRepo) List(context.Context, interfaces.ImportFilter) ([]*domain.ImportRun, error) {
	out := make([]*domain.ImportRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, nil
}

type fakeFindingRepo struct {
	interfaces.FindingRepository

	saved []*domain.Finding
}

func (f *fakeFindingRepo) SaveBatch(_ context.Context, findings []*domain.Finding) error {
	f.saved = append(f.saved, findings...)
	return nil
}

func (f *fakeFindingRepo) GetByImportID(context.Context, uuid.UUID) ([]*domain.Finding, error) {
	return f.saved, nil
}

func (f *fakeFindingRepo) GetStats(context.Context, uuid.UUID) (*interfaces.FindingStats, error) {
	stats := &interfaces.FindingStats{Total: len(f.saved)}
	for _, finding := range f.saved {
		if finding.Severity == domain.SeverityHigh {
			stats.High++
		}
	}
	return stats, nil
}

func (f *fakeFindingRepo) DeleteByImportID(context.Context, uuid.UUID) error {
	f.saved = nil
	return nil
}

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<detailedreport xmlns="https://www.veracode.com/schema/reports/export/1.0" app_id="42" last_update_time="2024-03-01 10:30:00 UTC">
<severity level="4">
  <category categoryname="Cross-Site Scripting">
    <recommendations><para text="Escape output."/></recommendations>
    <cwe cweid="79">
      <staticflaws>
        <flaw issueid="9" severity="4" cweid="79" categoryname="Cross-Site Scripting"
              cia_impact="cpn" module="m.war" type="t" description="d"
              sourcefilepath="src/" sourcefile="A.java"/>
      </staticflaws>
    </cwe>
  </category>
</severity>
</detailedreport>`

func newTestServer() (*Server, *fakeImportRepo, *fakeFindingRepo) {
	cfg := &config.Config{}
	cfg.Server.HTTPPort = "0"
	cfg.Import.MaxUploadBytes = 64 << 20

	imports := newFakeImportRepo()
	findings := &fakeFindingRepo{}
	imp := importer.NewService(veracode.New(false), imports, findings)
	return New(cfg, imp, imports, findings), imports, findings
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "veracode-ingest", body["service"])
}

func TestCreateImportRawBody(t *testing.T) {
	s, imports, findings := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(sampleReport))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var run domain.ImportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.ImportStatusCompleted, run.Status)
	assert.Equal(t, "42", run.ApplicationID)
	assert.Equal(t, "upload", run.Source)
	assert.Equal(t, 1, run.FindingsCount)

	assert.Len(t, imports.runs, 1)
	assert.Len(t, findings.saved, 1)
}

func TestCreateImportMultipart(t *testing.T) {
	s, _, _ := newTestServer()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("report", "weekly-scan.xml")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleReport))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := doRequest(s, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var run domain.ImportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "weekly-scan.xml", run.Source)
}

func TestCreateImportBadReport(t *testing.T) {
	s, imports, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader("<broken"))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Import domain.ImportRun `json:"import"`
		Error  string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ImportStatusFailed, body.Import.Status)
	assert.Contains(t, body.Error, "report conversion failed")

	// The failed run is queryable afterwards.
	assert.Len(t, imports.runs, 1)
}

func TestGetImport(t *testing.T) {
	s, imports, _ := newTestServer()

	run := &domain.ImportRun{ID: uuid.New(), Status: domain.ImportStatusCompleted}
	imports.runs[run.ID] = run

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/imports/"+run.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ImportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
}

func TestGetImportBadID(t *testing.T) {
	s, _, _ := newTestServer()

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/imports/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListImports(t *testing.T) {
	s, imports, _ := newTestServer()
	imports.runs[uuid.New()] = &domain.ImportRun{Status: domain.ImportStatusCompleted}

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []domain.ImportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestGetStats(t *testing.T) {
	s, _, findings := newTestServer()
	findings.saved = []*domain.Finding{
		{Severity: domain.SeverityHigh},
		{Severity: domain.SeverityLow},
	}

	id := uuid.New()
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/imports/"+id.String()+"/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats interfaces.FindingStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.High)
}

func TestDeleteFindings(t *testing.T) {
	s, _, findings := newTestServer()
	findings.saved = []*domain.Finding{{Severity: domain.SeverityInfo}}

	id := uuid.New()
	rec := doRequest(s, httptest.NewRequest(http.MethodDelete, "/api/v1/imports/"+id.String()+"/findings", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, findings.saved)
}

func TestHumanBodyLimit(t *testing.T) {
	assert.Equal(t, "64M", humanBodyLimit(64<<20))
	assert.Equal(t, "1M", humanBodyLimit(100))
	assert.Equal(t, "2M", humanBodyLimit(2<<20))
}
