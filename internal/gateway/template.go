package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// TemplateClient posts messages to the WhatsApp Business Cloud API.
type TemplateClient struct {
	baseURL    string
	token      string
	phoneID    string
	language   string
	httpClient *http.Client
	logger     *logging.Logger
}

// TemplateClientConfig configures the template gateway client.
type TemplateClientConfig struct {
	BaseURL  string
	Token    string
	PhoneID  string
	Language string
	Logger   *logging.Logger
}

// NewTemplateClient builds a template gateway client.
func NewTemplateClient(cfg TemplateClientConfig) *TemplateClient {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "es_AR"
	}
	return &TemplateClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		phoneID:  cfg.PhoneID,
		language: cfg.Language,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: cfg.Logger,
	}
}

var _ TemplateSender = (*TemplateClient)(nil)
var _ TextSender = (*TemplateClient)(nil)

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Image *templateMedia `json:"image,omitempty"`
}

type templateMedia struct {
	Link string `json:"link"`
}

// SendTemplate dispatches a pre-approved template with positional
// variables and an optional media header.
func (c *TemplateClient) SendTemplate(ctx context.Context, req TemplateRequest) (*SendResult, error) {
	if c.token == "" || c.phoneID == "" {
		return nil, errors.New("gateway: template client credentials missing")
	}
	if req.To == "" {
		return nil, errors.New("gateway: to required")
	}
	if req.Template == "" {
		return nil, errors.New("gateway: template required")
	}

	var components []templateComponent
	if req.MediaURL != "" {
		components = append(components, templateComponent{
			Type: "header",
			Parameters: []templateParameter{
				{Type: "image", Image: &templateMedia{Link: req.MediaURL}},
			},
		})
	}
	if len(req.Params) > 0 {
		body := templateComponent{Type: "body"}
		for _, p := range req.Params {
			body.Parameters = append(body.Parameters, templateParameter{Type: "text", Text: p})
		}
		components = append(components, body)
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "template",
		"template": map[string]any{
			"name":       req.Template,
			"language":   map[string]string{"code": c.language},
			"components": components,
		},
	}

	result, err := c.post(ctx, payload)
	if err != nil {
		c.logger.Error("template send failed", "to", req.To, "template", req.Template, "error", err)
		return nil, err
	}
	c.logger.Info("template message sent", "to", req.To, "template", req.Template, "message_id", result.MessageID)
	return result, nil
}

// SendText dispatches a free-form text message. Only valid inside an
// open 24-hour conversation window.
func (c *TemplateClient) SendText(ctx context.Context, to, body string) (*SendResult, error) {
	if c.token == "" || c.phoneID == "" {
		return nil, errors.New("gateway: template client credentials missing")
	}
	if to == "" {
		return nil, errors.New("gateway: to required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("gateway: body required")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}

	result, err := c.post(ctx, payload)
	if err != nil {
		c.logger.Error("text send failed", "to", to, "error", err)
		return nil, err
	}
	return result, nil
}

// Health performs a lightweight authenticated request against the phone
// number resource.
func (c *TemplateClient) Health(ctx context.Context) HealthStatus {
	if c.token == "" || c.phoneID == "" {
		return HealthStatus{Connected: false, Err: "credentials missing"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+c.phoneID, nil)
	if err != nil {
		return HealthStatus{Connected: false, Err: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{Connected: false, Err: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return HealthStatus{Connected: true}
	}
	return HealthStatus{Connected: false, Err: fmt.Sprintf("status %d", resp.StatusCode)}
}

func (c *TemplateClient) post(ctx context.Context, payload map[string]any) (*SendResult, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal template payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.phoneID+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: template api request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorBody map[string]any
		if len(body) > 0 && json.Unmarshal(body, &errorBody) == nil {
			return nil, fmt.Errorf("gateway: template api status %d: %v", resp.StatusCode, errorBody)
		}
		return nil, fmt.Errorf("gateway: template api status %d", resp.StatusCode)
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	result := &SendResult{}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}
	return result, nil
}
