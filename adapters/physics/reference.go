package physics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"battforge/domain/telemetry"
	"battforge/internal/config"
	"battforge/internal/errors"
	"battforge/ports"
)

// TwinClient calls the external full-order physics solver for a reference
// discharge trace. The solver itself is out of scope; this adapter only
// fetches its output for the safety scorer, and every failure is non-fatal.
type TwinClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTwinClient creates a reference-trace client, or nil when disabled.
func NewTwinClient(cfg config.PhysicsConfig) *TwinClient {
	if !cfg.Enabled {
		return nil
	}
	return &TwinClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ ports.PhysicsReferencePort = (*TwinClient)(nil)

// GenerateReference fetches an aligned time/voltage discharge trace for the
// given chemistry and operating point.
func (c *TwinClient) GenerateReference(ctx context.Context, chemistry string, cRate, temperatureC float64) (*telemetry.ReferenceTrace, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"chemistry":     chemistry,
		"c_rate":        cRate,
		"temperature_c": temperatureC,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal reference request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/simulate/discharge", bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create reference request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError("physics twin", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalServiceError("physics twin", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExternalServiceError("physics twin", fmt.Errorf("status %d", resp.StatusCode))
	}

	var result struct {
		Success bool      `json:"success"`
		Time    []float64 `json:"time"`
		Voltage []float64 `json:"voltage"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.ExternalServiceError("physics twin", err)
	}
	if !result.Success || len(result.Time) == 0 || len(result.Time) != len(result.Voltage) {
		return nil, errors.ExternalServiceError("physics twin", fmt.Errorf("unusable simulation result"))
	}

	return &telemetry.ReferenceTrace{Time: result.Time, Voltage: result.Voltage}, nil
}
