package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"battforge/domain/telemetry"
	"battforge/internal/config"
	"battforge/internal/errors"
	"battforge/ports"
)

// GeminiClassifier implements the semantic classifier collaborator against
// the Gemini generateContent API. Every call is bounded by the configured
// timeout; callers fall through to the deterministic mappers on any error.
type GeminiClassifier struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewGeminiClassifier creates a classifier from config. Returns nil when the
// collaborator is disabled so callers can skip the semantic stage.
func NewGeminiClassifier(cfg config.AIConfig) *GeminiClassifier {
	if !cfg.Enabled {
		return nil
	}
	return &GeminiClassifier{
		apiKey:     cfg.GeminiKey,
		model:      cfg.GeminiModel,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ ports.SemanticClassifierPort = (*GeminiClassifier)(nil)

// ClassifySignature identifies the dataset type from headers and a preview.
func (c *GeminiClassifier) ClassifySignature(ctx context.Context, headers []string, sampleCSV string) (*ports.DatasetSignature, error) {
	prompt := fmt.Sprintf(`Act as a Data Scientist specialized in Battery R&D.
Classify this dataset from its header and sample rows.

Headers: %v
Sample Data:
%s

Classify the data type as 'Cycling' (time/volts/amps logs), 'Impedance' (EIS sweep), or 'Unknown'.
Return JSON ONLY:
{"dataset_type": "Cycling", "summary": "one sentence", "is_standard_cycling": true}`, headers, sampleCSV)

	var signature ports.DatasetSignature
	if err := c.generateJSON(ctx, prompt, &signature); err != nil {
		return nil, err
	}
	if signature.DatasetType == "" {
		return nil, errors.ExternalServiceError("classifier", fmt.Errorf("response missing dataset_type"))
	}
	return &signature, nil
}

// MapCyclingColumns maps arbitrary headers onto the canonical cycling schema.
func (c *GeminiClassifier) MapCyclingColumns(ctx context.Context, headers []string, sampleCSV string) (telemetry.ColumnMapping, error) {
	prompt := fmt.Sprintf(`Act as a Data Ingestion Specialist for Battery Research.
Map the provided headers to the standard internal schema:
- 'time': time in seconds (or equivalent step)
- 'voltage': cell voltage (V)
- 'current': current (A)
- 'capacity': capacity (Ah) (optional)
- 'temperature': cell/pack temperature (C) (optional)
- 'soc': state of charge (%%) (optional)

Headers: %v
Sample Data:
%s

Return a JSON object mapping {"standard_key": "original_header"}.
Only include keys you are confident about. Flattened or prefixed headers
(e.g. 'data_step_voltage', 'u_meas') must still be mapped by their core term.`, headers, sampleCSV)

	raw := map[string]string{}
	if err := c.generateJSON(ctx, prompt, &raw); err != nil {
		return nil, err
	}

	mapping := telemetry.ColumnMapping{}
	for key, header := range raw {
		mapping[telemetry.CanonicalKey(strings.ToLower(key))] = header
	}
	return mapping, nil
}

// MapEISColumns maps headers onto freq/real/imag for impedance sweeps.
func (c *GeminiClassifier) MapEISColumns(ctx context.Context, headers []string, sampleCSV string) (map[string]string, error) {
	prompt := fmt.Sprintf(`Act as an Electrochemistry Data Expert.
Identify the Nyquist plot columns from the headers provided.

Headers: %v
Sample Data:
%s

Target keys:
- 'freq': frequency (Hz)
- 'real': real impedance (Z', Re(Z)) (Ohm)
- 'imag': imaginary impedance (Z'', Im(Z)) (Ohm)

Return JSON mapping: {"freq": "original_col_name", "real": "...", "imag": "..."}.
If you cannot find a column, omit the key.`, headers, sampleCSV)

	raw := map[string]string{}
	if err := c.generateJSON(ctx, prompt, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// generateJSON performs one bounded generateContent call and parses the
// model's JSON payload into out.
func (c *GeminiClassifier) generateJSON(ctx context.Context, prompt string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	reqBody := struct {
		Contents []content `json:"contents"`
	}{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to marshal classifier request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create classifier request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.ExternalServiceError("classifier", fmt.Errorf("timeout after %v", c.timeout))
		}
		return errors.ExternalServiceError("classifier", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.ExternalServiceError("classifier", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.ExternalServiceError("classifier",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300)))
	}

	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.ExternalServiceError("classifier", fmt.Errorf("malformed envelope: %w", err))
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return errors.ExternalServiceError("classifier", fmt.Errorf("empty response"))
	}

	text := cleanJSONContent(envelope.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		log.Printf("[Classifier] unparseable JSON payload: %s", truncate(text, 300))
		return errors.ExternalServiceError("classifier", fmt.Errorf("malformed JSON payload: %w", err))
	}
	return nil
}

// cleanJSONContent strips markdown fences and any chatter preceding the
// first JSON object or array.
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	if start := strings.IndexAny(content, "{["); start > 0 {
		content = content[start:]
	}
	return content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
