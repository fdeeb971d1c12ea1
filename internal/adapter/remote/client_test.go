package remote

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testBlock(id string) domain.Block {
	return domain.Block{
		ID:   id,
		Name: "Block " + id,
		Boundary: [][][2]float64{{
			{85.0, 25.0}, {85.1, 25.0}, {85.1, 25.1}, {85.0, 25.1}, {85.0, 25.0},
		}},
	}
}

func rainfallQuery() Query {
	return Query{
		Variable:       domain.VariableRainfall,
		Start:          YearMonth{2023, 1},
		End:            YearMonth{2023, 3},
		ResolutionM:    5000,
		ScaleFactor:    1,
		CloudThreshold: 40,
		Aggregation:    AggregationSum,
	}
}

func TestClient_Extract_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aggregate", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		var req aggregateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rainfall", req.Variable)
		assert.Equal(t, "2023-01", req.Start)
		assert.Equal(t, "2023-03", req.End)
		assert.Equal(t, 5000, req.ResolutionM)
		assert.Equal(t, 40.0, req.CloudThreshold)
		assert.Equal(t, "sum", req.Aggregation)
		assert.Equal(t, "Polygon", req.Geometry.Type)

		resp := aggregateResponse{Rows: []aggregateRow{
			{Year: 2023, Month: 1, Value: 31.5},
			{Year: 2023, Month: 3, Value: 12.0},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, rainfallQuery())
	require.NoError(t, err)

	require.Len(t, obs, 2)
	assert.Equal(t, "BLK001", obs[0].BlockID)
	assert.Equal(t, 2023, obs[0].Year)
	assert.Equal(t, 1, obs[0].Month)
	assert.Equal(t, domain.VariableRainfall, obs[0].Variable)
	assert.Equal(t, 31.5, obs[0].Value)
	// Month 2 had no valid scenes and is simply absent.
	assert.Equal(t, 3, obs[1].Month)
}

func TestClient_Extract_AppliesScaleFactor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := aggregateResponse{Rows: []aggregateRow{{Year: 2023, Month: 6, Value: 7421}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	q := Query{
		Variable:       domain.VariableVegetationIndex,
		Start:          YearMonth{2023, 6},
		End:            YearMonth{2023, 6},
		ResolutionM:    10,
		ScaleFactor:    0.0001,
		CloudThreshold: 40,
		Aggregation:    AggregationMean,
	}

	c := testClient(srv.URL)
	obs, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, q)
	require.NoError(t, err)

	require.Len(t, obs, 1)
	assert.InDelta(t, 0.7421, obs[0].Value, 1e-9)
}

func TestClient_Extract_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(aggregateResponse{}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	obs, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, rainfallQuery())
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestClient_Extract_PlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, rainfallQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestClient_Extract_InvalidMonthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := aggregateResponse{Rows: []aggregateRow{{Year: 2023, Month: 13, Value: 1}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, rainfallQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid month")
}

func TestClient_Extract_InvalidQuery(t *testing.T) {
	c := testClient("http://unused")

	q := rainfallQuery()
	q.Start, q.End = q.End, q.Start
	_, err := c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, q)
	require.Error(t, err)

	q = rainfallQuery()
	q.Variable = "soil_moisture"
	_, err = c.Extract(context.Background(), []domain.Block{testBlock("BLK001")}, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variable")
}
