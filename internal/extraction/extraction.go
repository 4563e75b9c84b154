// Package extraction provides a client for the Mindee v2 document inference
// API, mapping document photos to the structured fields the intake flow
// accumulates in a session.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// Default configuration for the extraction client.
const (
	// DefaultBaseURL is the Mindee v2 API endpoint.
	DefaultBaseURL = "https://api-v2.mindee.net"
	// DefaultPollInterval is the delay between polling attempts for an
	// enqueued inference job.
	DefaultPollInterval = 2 * time.Second
	// DefaultMaxPolls bounds how long one inference is awaited.
	DefaultMaxPolls = 30
)

// Raw field names returned by the passport inference model.
const (
	rawGivenNames     = "given_names"
	rawSurnames       = "surnames"
	rawPassportNumber = "passport_number"
)

// Raw field names returned by the vehicle-document inference model.
const (
	rawCarBrand  = "car_brand"
	rawCarModel  = "car_model"
	rawVinNumber = "vin_number"
)

// Opts holds configuration for the extraction client.
type Opts struct {
	APIKey          string
	BaseURL         string
	PassportModelID string
	VehicleModelID  string
	HTTPClient      *http.Client
	PollInterval    time.Duration
	MaxPolls        int
}

// Option configures the extraction client.
type Option func(*Opts)

// WithAPIKey sets the Mindee API key, overriding $MINDEE_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithPassportModel sets the inference model ID for passport photos.
func WithPassportModel(id string) Option {
	return func(o *Opts) { o.PassportModelID = id }
}

// WithVehicleModel sets the inference model ID for vehicle documents.
func WithVehicleModel(id string) Option {
	return func(o *Opts) { o.VehicleModelID = id }
}

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithPollInterval overrides the job polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// Client calls the Mindee v2 inference API using the enqueue-and-poll shape.
type Client struct {
	apiKey          string
	baseURL         string
	passportModelID string
	vehicleModelID  string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPolls        int
}

// NewClient creates an extraction client. The API key comes from options or
// the MINDEE_API_KEY environment variable; both model IDs are required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL:      DefaultBaseURL,
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MINDEE_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("MINDEE_API_KEY not set")
	}
	if cfg.PassportModelID == "" || cfg.VehicleModelID == "" {
		return nil, fmt.Errorf("passport and vehicle model IDs must be set")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	slog.Debug("Extraction client created", "base_url", cfg.BaseURL, "poll_interval", cfg.PollInterval)
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		passportModelID: cfg.PassportModelID,
		vehicleModelID:  cfg.VehicleModelID,
		httpClient:      cfg.HTTPClient,
		pollInterval:    cfg.PollInterval,
		maxPolls:        cfg.MaxPolls,
	}, nil
}

// ExtractPassport runs the passport model on the image and maps the result
// into session field keys, substituting Unknown for unresolved values.
func (c *Client) ExtractPassport(ctx context.Context, imagePath string) (map[string]string, error) {
	raw, err := c.extract(ctx, imagePath, c.passportModelID)
	if err != nil {
		return nil, fmt.Errorf("passport extraction: %w", err)
	}
	return PassportFields(raw), nil
}

// ExtractVehicle runs the vehicle model on the image and maps the result into
// session field keys, substituting Unknown for unresolved values.
func (c *Client) ExtractVehicle(ctx context.Context, imagePath string) (map[string]string, error) {
	raw, err := c.extract(ctx, imagePath, c.vehicleModelID)
	if err != nil {
		return nil, fmt.Errorf("vehicle extraction: %w", err)
	}
	return VehicleFields(raw), nil
}

// PassportFields maps raw passport inference fields into the session schema.
// The full name is the given names joined with the surnames.
func PassportFields(raw map[string]string) map[string]string {
	fullName := strings.TrimSpace(strings.TrimSpace(raw[rawGivenNames]) + " " + strings.TrimSpace(raw[rawSurnames]))
	if fullName == "" {
		fullName = models.UnknownValue
	}
	return map[string]string{
		models.FieldFullName:       fullName,
		models.FieldPassportNumber: orUnknown(raw[rawPassportNumber]),
	}
}

// VehicleFields maps raw vehicle inference fields into the session schema.
func VehicleFields(raw map[string]string) map[string]string {
	return map[string]string{
		models.FieldCarBrand:  orUnknown(raw[rawCarBrand]),
		models.FieldCarModel:  orUnknown(raw[rawCarModel]),
		models.FieldVinNumber: orUnknown(raw[rawVinNumber]),
	}
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.UnknownValue
	}
	return v
}

// enqueueResponse is the reply to POST /v2/inferences/enqueue.
type enqueueResponse struct {
	Job struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		PollingURL string `json:"polling_url"`
	} `json:"job"`
}

// pollResponse is the reply to polling an inference job. The inference block
// is present once the job has been processed.
type pollResponse struct {
	Job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  struct {
			Detail string `json:"detail"`
		} `json:"error"`
	} `json:"job"`
	Inference *struct {
		Result struct {
			Fields map[string]struct {
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"result"`
	} `json:"inference"`
}

// extract uploads the image, enqueues an inference for modelID and polls
// until the result is available.
func (c *Client) extract(ctx context.Context, imagePath, modelID string) (map[string]string, error) {
	slog.Debug("Extraction extract invoked", "image", filepath.Base(imagePath), "modelID", modelID)

	pollingURL, err := c.enqueue(ctx, imagePath, modelID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		fields, done, err := c.poll(ctx, pollingURL)
		if err != nil {
			return nil, err
		}
		if done {
			slog.Debug("Extraction extract succeeded", "modelID", modelID, "fields", len(fields))
			return fields, nil
		}
	}
	return nil, fmt.Errorf("inference job did not finish after %d polls", c.maxPolls)
}

func (c *Client) enqueue(ctx context.Context, imagePath, modelID string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := writer.WriteField("model_id", modelID); err != nil {
		return "", fmt.Errorf("write model_id: %w", err)
	}
	if err := writer.WriteField("rag", "false"); err != nil {
		return "", fmt.Errorf("write rag: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/inferences/enqueue", &body)
	if err != nil {
		return "", fmt.Errorf("build enqueue request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("enqueue request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("enqueue returned status %d", resp.StatusCode)
	}

	var enq enqueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&enq); err != nil {
		return "", fmt.Errorf("decode enqueue response: %w", err)
	}
	if enq.Job.PollingURL == "" {
		return "", fmt.Errorf("enqueue response missing polling URL")
	}
	slog.Debug("Extraction job enqueued", "jobID", enq.Job.ID, "status", enq.Job.Status)
	return enq.Job.PollingURL, nil
}

func (c *Client) poll(ctx context.Context, pollingURL string) (map[string]string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("poll request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var pr pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, false, fmt.Errorf("decode poll response: %w", err)
	}
	if pr.Job.Status == "Failed" {
		return nil, false, fmt.Errorf("inference job failed: %s", pr.Job.Error.Detail)
	}
	if pr.Inference == nil {
		return nil, false, nil
	}

	fields := make(map[string]string, len(pr.Inference.Result.Fields))
	for name, f := range pr.Inference.Result.Fields {
		fields[name] = f.Value
	}
	return fields, true, nil
}
