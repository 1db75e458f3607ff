package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/config"
)

const (
	apiKeyHeader    = "x-api-key"
	maxResponseSize = 10 << 20
)

type plansEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Client fetches raw plan records from the ERP public plans endpoint. It never
// retries; callers decide what a failure means.
type Client struct {
	baseURL    string
	plansPath  string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     logrus.FieldLogger
}

func NewClient(cfg config.ERPConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		plansPath:  cfg.PlansPath,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		now:        time.Now,
		logger:     factory.NewModuleLogger("erp-client"),
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) PlansURL() string {
	return c.baseURL + c.plansPath
}

// FetchPlans performs one GET against the plans endpoint and returns the
// records of the data array. A record that is not a JSON object is returned
// as nil so the normalizer can reject it on its own.
func (c *Client) FetchPlans(ctx context.Context) ([]map[string]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.PlansURL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	query := endpoint.Query()
	query.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set(apiKeyHeader, c.apiKey)

	c.logger.WithField("url", c.PlansURL()).Debug("Fetching plans from ERP")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(reqCtx, err)
	}

	return decodePlans(body)
}

func decodePlans(body []byte) ([]map[string]any, error) {
	var envelope plansEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: success flag missing or false", ErrInvalidResponseShape)
	}

	var items []json.RawMessage
	if len(envelope.Data) == 0 || envelope.Data[0] != '[' {
		return nil, fmt.Errorf("%w: data is not a list", ErrInvalidResponseShape)
	}
	if err := json.Unmarshal(envelope.Data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		records = append(records, decodeRecord(item))
	}
	return records, nil
}

func decodeRecord(item json.RawMessage) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil
	}
	return record
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}
