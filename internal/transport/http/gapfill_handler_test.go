package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "meterfill/internal/errors"
	"meterfill/internal/gapfill"
	mw "meterfill/internal/middleware"
	"meterfill/internal/readings"
	"meterfill/internal/services"
	"meterfill/internal/shared/testutil"
	"meterfill/pkg/contracts/domain"
)

func month(year int, m time.Month) domain.Month {
	return domain.Month{Year: year, Month: m}
}

func record(siteID string, year int, m time.Month, value float64) domain.ConsumptionRecord {
	return domain.ConsumptionRecord{SiteID: siteID, Month: month(year, m), Value: value, Valid: true}
}

type testServer struct {
	router chi.Router
}

func newTestServer(t *testing.T, recs []domain.ConsumptionRecord, loader services.SnapshotLoader) *testServer {
	t.Helper()
	logger := testutil.DiscardLogger()

	store := readings.NewStore()
	store.Replace(readings.NewSnapshot(recs))

	service, err := services.NewGapFillService(services.GapFillServiceOptions{
		Engine: gapfill.NewEngine(nil, logger),
		Store:  store,
		Loader: loader,
		Logger: logger,
	})
	require.NoError(t, err)

	validation := mw.NewValidationMiddleware(logger)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	gapfillHandler := NewGapFillHandler(service, validation, errorHandler, logger)
	sitesHandler := NewSitesHandler(service, errorHandler, logger)

	router := chi.NewRouter()
	router.Post("/api/gapfill/resolve", gapfillHandler.Resolve)
	router.Post("/api/gapfill/batch", gapfillHandler.Batch)
	router.Get("/api/sites", sitesHandler.List)
	router.Get("/api/sites/{siteID}/months", sitesHandler.Months)
	router.Post("/api/readings/reload", sitesHandler.Reload)

	return &testServer{router: router}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func siteHistory() []domain.ConsumptionRecord {
	return []domain.ConsumptionRecord{
		record("ACME-001", 2025, time.January, 90),
		record("ACME-001", 2025, time.February, 100),
		record("ACME-001", 2025, time.March, 110),
	}
}

func TestResolveEndpointResolved(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/gapfill/resolve", `{"site_id":"ACME-001","target_month":"2025-04"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolution domain.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolution))
	assert.Equal(t, domain.OutcomeResolved, resolution.Outcome)
	assert.Equal(t, domain.RuleThreeMonthAverage, resolution.Rule)
	assert.InDelta(t, 100, resolution.Value, 1e-9)
}

func TestResolveEndpointGapIs200(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/gapfill/resolve", `{"site_id":"UNKNOWN-9","target_month":"2025-04"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolution domain.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolution))
	assert.Equal(t, domain.OutcomeGap, resolution.Outcome)
	require.Len(t, resolution.Attempts, 1)
	assert.Equal(t, domain.ReasonNoDataForSite, resolution.Attempts[0].Reason)
}

func TestResolveEndpointValidation(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing site", `{"target_month":"2025-04"}`},
		{"blank site", `{"site_id":"  ","target_month":"2025-04"}`},
		{"bad month", `{"site_id":"ACME-001","target_month":"April 2025"}`},
		{"unknown field", `{"site_id":"ACME-001","target_month":"2025-04","bogus":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/gapfill/resolve", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Contains(t, problem, "type")
			assert.EqualValues(t, http.StatusBadRequest, problem["status"])
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/gapfill/batch",
		`{"site_ids":["ACME-001","UNKNOWN-9"],"months":["2025-04"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Resolutions, 2)
	assert.Equal(t, 1, result.Summary.Resolved)
	assert.Equal(t, 1, result.Summary.Gaps)
}

func TestBatchEndpointRange(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/gapfill/batch",
		`{"site_ids":["ACME-001"],"from_month":"2025-04","to_month":"2025-06"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Resolutions, 3)
}

func TestBatchEndpointRejectsNoMonths(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/gapfill/batch", `{"site_ids":["ACME-001"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSitesEndpoints(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodGet, "/api/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Count int `json:"count"`
		Sites []struct {
			SiteID  string `json:"site_id"`
			Records int    `json:"records"`
		} `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, "ACME-001", listing.Sites[0].SiteID)

	rec = ts.do(http.MethodGet, "/api/sites/ACME-001/months", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/sites/UNKNOWN-9/months", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReloadEndpoint(t *testing.T) {
	loader := func(ctx context.Context) ([]domain.ConsumptionRecord, readings.LoadStats, error) {
		return siteHistory(), readings.LoadStats{Files: 1, Records: 3}, nil
	}
	ts := newTestServer(t, nil, loader)

	rec := ts.do(http.MethodPost, "/api/readings/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reloaded"`)

	rec = ts.do(http.MethodGet, "/api/sites", "")
	assert.Contains(t, rec.Body.String(), "ACME-001")
}

func TestReloadEndpointWithoutLoader(t *testing.T) {
	ts := newTestServer(t, siteHistory(), nil)

	rec := ts.do(http.MethodPost, "/api/readings/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
