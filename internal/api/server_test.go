package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tomoseq/app"
	"tomoseq/domain/core"
	"tomoseq/domain/peaks"
	"tomoseq/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type peakResponse struct {
	RunID    string              `json:"run_id"`
	Peaks    []peaks.Row         `json:"peaks"`
	Skipped  []peaks.SkippedGene `json:"skipped"`
	Manifest struct {
		Seed int64 `json:"seed"`
	} `json:"manifest"`
}

func newTestServer(t *testing.T, withRepo bool, maxBody int64) (*Server, *testkit.InMemoryRunRepository) {
	t.Helper()
	kit := testkit.NewTestKit()
	var repo *testkit.InMemoryRunRepository
	var service *app.PeakService
	if withRepo {
		repo = kit.Repository()
		service = app.NewPeakService(kit.RNG(), repo)
		return NewServer(service, repo, Options{Defaults: peaks.DefaultParams(), MaxBodySize: maxBody}), repo
	}
	service = app.NewPeakService(kit.RNG(), nil)
	return NewServer(service, nil, Options{Defaults: peaks.DefaultParams(), MaxBodySize: maxBody}), nil
}

func scenarioBody(t *testing.T) []byte {
	t.Helper()
	body := map[string]interface{}{
		"genes":    testkit.ScenarioGenes,
		"sections": testkit.ScenarioSections,
		"counts":   testkit.ScenarioCounts,
		"params": map[string]interface{}{
			"threshold":      1,
			"min_length":     3,
			"n_permutations": 1000,
			"rng_seed":       42,
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func do(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false, 0)
	rec := do(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":false}`, rec.Body.String())
}

func TestFindPeaks_StoresAndServesRun(t *testing.T) {
	s, repo := newTestServer(t, true, 0)

	rec := do(s, http.MethodPost, "/api/v1/peaks", scenarioBody(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp peakResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Peaks, 1)
	assert.Equal(t, "G1", resp.Peaks[0].Gene)
	assert.Equal(t, 3, resp.Peaks[0].Start)
	assert.Equal(t, 6, resp.Peaks[0].End)
	assert.Less(t, resp.Peaks[0].AdjustedPValue, 0.05)
	assert.Equal(t, int64(42), resp.Manifest.Seed)

	stored, err := repo.GetRun(t.Context(), core.RunID(resp.RunID))
	require.NoError(t, err)
	assert.Len(t, stored.Peaks, 1)

	got := do(s, http.MethodGet, "/api/v1/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), `"gene":"G1"`)

	report := do(s, http.MethodGet, "/api/v1/runs/"+resp.RunID+"/report", nil)
	require.Equal(t, http.StatusOK, report.Code)
	assert.True(t, strings.HasPrefix(report.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, report.Body.String(), "<td>G1</td>")

	list := do(s, http.MethodGet, "/api/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), resp.RunID)
}

func TestFindPeaks_RequestSeedLeavesDefaultsAlone(t *testing.T) {
	defaults := peaks.DefaultParams().WithSeed(42)
	defaults.Threshold = 1
	defaults.MinLength = 3
	defaults.Permutations = 200
	s := NewServer(app.NewPeakService(nil, nil), nil, Options{Defaults: defaults})

	post := func(params map[string]interface{}) int64 {
		t.Helper()
		data, err := json.Marshal(map[string]interface{}{
			"genes":    testkit.ScenarioGenes,
			"sections": testkit.ScenarioSections,
			"counts":   testkit.ScenarioCounts,
			"params":   params,
		})
		require.NoError(t, err)
		rec := do(s, http.MethodPost, "/api/v1/peaks", data)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp peakResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Manifest.Seed
	}

	assert.Equal(t, int64(42), post(map[string]interface{}{}))
	assert.Equal(t, int64(7), post(map[string]interface{}{"rng_seed": 7}))
	assert.Equal(t, int64(42), post(map[string]interface{}{}))
	assert.Equal(t, int64(42), *defaults.Seed)
}

func TestFindPeaks_Errors(t *testing.T) {
	s, _ := newTestServer(t, false, 0)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{
			name:   "malformed json",
			body:   `{"genes": [`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "shape mismatch",
			body:   `{"genes":["A"],"sections":["s1","s2"],"counts":[[1]]}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "empty matrix",
			body:   `{"genes":[],"sections":[],"counts":[]}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "bad parameter",
			body:   `{"genes":["A"],"sections":["s1","s2"],"counts":[[1,2]],"params":{"min_length":0}}`,
			status: http.StatusBadRequest,
			code:   "INVALID_PARAMETER",
		},
		{
			name:   "negative count",
			body:   `{"genes":["A"],"sections":["s1","s2"],"counts":[[1,-2]]}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "zero library size",
			body:   `{"genes":["A","B"],"sections":["s1","s2","s3"],"counts":[[1,0,3],[2,0,1]],"params":{"min_sections":0}}`,
			status: http.StatusUnprocessableEntity,
			code:   "DEGENERATE_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/v1/peaks", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestFindPeaks_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, false, 64)
	rec := do(s, http.MethodPost, "/api/v1/peaks", scenarioBody(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRuns_Errors(t *testing.T) {
	s, _ := newTestServer(t, true, 0)

	rec := do(s, http.MethodGet, "/api/v1/runs/"+core.NewRunID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = do(s, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bare, _ := newTestServer(t, false, 0)
	rec = do(bare, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, codeNotConfigured, errorCode(t, rec))
}
