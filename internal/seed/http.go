package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/pkg/logger"
)

// pageSize is the opportunity page requested per call.
const pageSize = 500

// HTTPClient wraps http.Client with JSON helpers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request and decodes a JSON response into out when
// out is non-nil.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// submitDiagnostics posts diagnostics concurrently and returns the ids the
// service accepted.
func submitDiagnostics(ctx context.Context, cfg *Config, client *HTTPClient, diags []model.Diagnostic, stats *Stats) []string {
	log := logger.Get()
	log.Info(ctx, "submitting diagnostics", logger.Int("count", len(diags)), logger.Int("workers", cfg.Workers))

	var (
		accepted, duplicate, failed, submitted atomic.Int64
		mu                                     sync.Mutex
		ids                                    = make([]string, 0, len(diags))
	)

	work := make(chan model.Diagnostic, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range work {
				var ack Ack
				status, err := client.Post(ctx, "/api/diagnostico", d, &ack)
				submitted.Add(1)
				switch {
				case err == nil && status == http.StatusAccepted:
					accepted.Add(1)
				case err == nil && status == http.StatusOK:
					duplicate.Add(1)
				default:
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "submission failed", logger.String("diagnostic_id", d.ID),
							logger.Int("status", status), logger.Any("error", err))
					}
					continue
				}
				mu.Lock()
				ids = append(ids, d.ID)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(work)
		for _, d := range diags {
			select {
			case <-ctx.Done():
				return
			case work <- d:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))
	return ids
}

// fetchOpportunities pages through every opportunity.
func fetchOpportunities(ctx context.Context, client *HTTPClient) ([]model.Opportunity, error) {
	var all []model.Opportunity
	for offset := 0; ; offset += pageSize {
		var page []model.Opportunity
		path := "/api/sales/oportunidades?limit=" + strconv.Itoa(pageSize) + "&offset=" + strconv.Itoa(offset)
		status, err := client.Get(ctx, path, &page)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("list opportunities: status %d", status)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// fetchPipelineStats reads the pipeline aggregate.
func fetchPipelineStats(ctx context.Context, client *HTTPClient) (model.PipelineStats, error) {
	var st model.PipelineStats
	status, err := client.Get(ctx, "/api/sales/pipeline/stats", &st)
	if err != nil {
		return st, err
	}
	if status != http.StatusOK {
		return st, fmt.Errorf("pipeline stats: status %d", status)
	}
	return st, nil
}
