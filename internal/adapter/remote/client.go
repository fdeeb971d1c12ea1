package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
)

// Client implements Extractor against the hosted remote-sensing platform's
// zonal aggregation endpoint. One request per block per query; the
// platform's own execution engine handles scene filtering, CRS handling,
// and spatial reduction.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a remote extraction client.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Extract runs the query for each block and returns the combined
// per-block-period table. Block-periods the platform reports no valid
// scenes for are simply absent.
func (c *Client) Extract(ctx context.Context, blocks []domain.Block, q Query) ([]domain.ClimateObservation, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", q.Variable, err)
	}

	var out []domain.ClimateObservation
	for _, block := range blocks {
		rows, err := c.aggregateBlock(ctx, block, q)
		if err != nil {
			return nil, fmt.Errorf("extract %s for block %s: %w", q.Variable, block.ID, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (c *Client) aggregateBlock(ctx context.Context, block domain.Block, q Query) ([]domain.ClimateObservation, error) {
	reqBody := aggregateRequest{
		Variable:       string(q.Variable),
		Start:          fmt.Sprintf("%d-%02d", q.Start.Year, q.Start.Month),
		End:            fmt.Sprintf("%d-%02d", q.End.Year, q.End.Month),
		ResolutionM:    q.ResolutionM,
		CloudThreshold: q.CloudThreshold,
		Aggregation:    string(q.Aggregation),
		Geometry: geometry{
			Type:        "Polygon",
			Coordinates: block.Boundary,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/aggregate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteAPIDuration.WithLabelValues(string(q.Variable)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RemoteRequests.WithLabelValues(string(q.Variable), "error").Inc()
		return nil, fmt.Errorf("aggregate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RemoteRequests.WithLabelValues(string(q.Variable), "error").Inc()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform error: status %d: %s", resp.StatusCode, msg)
	}

	var aggResp aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&aggResp); err != nil {
		c.metrics.RemoteRequests.WithLabelValues(string(q.Variable), "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(aggResp.Rows) == 0 {
		c.metrics.RemoteRequests.WithLabelValues(string(q.Variable), "empty").Inc()
		c.logger.Debug("no valid scenes for block", "block", block.ID, "variable", q.Variable)
		return nil, nil
	}
	c.metrics.RemoteRequests.WithLabelValues(string(q.Variable), "success").Inc()

	obs := make([]domain.ClimateObservation, 0, len(aggResp.Rows))
	for _, row := range aggResp.Rows {
		if row.Month < 1 || row.Month > 12 {
			return nil, fmt.Errorf("platform returned invalid month %d for block %s", row.Month, block.ID)
		}
		obs = append(obs, domain.ClimateObservation{
			BlockID:  block.ID,
			Year:     row.Year,
			Month:    row.Month,
			Variable: q.Variable,
			Value:    row.Value * q.ScaleFactor,
		})
	}
	return obs, nil
}

// Platform API request/response types.

type aggregateRequest struct {
	Variable       string   `json:"variable"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	ResolutionM    int      `json:"resolution_m"`
	CloudThreshold float64  `json:"cloud_threshold"`
	Aggregation    string   `json:"aggregation"`
	Geometry       geometry `json:"geometry"`
}

type geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

type aggregateResponse struct {
	Rows []aggregateRow `json:"rows"`
}

type aggregateRow struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Value float64 `json:"value"` // raw band units; scale factor applied client-side
}
