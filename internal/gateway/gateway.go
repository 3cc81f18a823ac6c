// Package gateway defines the outbound messaging channels and their
// shared request/response types. Two implementations exist: the
// stateless template API client in this package and the persistent
// session client in gateway/session.
package gateway

import "context"

// Provider identifies which channel carried a message.
type Provider string

const (
	ProviderTemplate Provider = "template_api"
	ProviderSession  Provider = "session"
)

// MediaKind classifies an attachment for the session gateway.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

// SendResult carries the gateway message id of a successful send.
type SendResult struct {
	MessageID string
}

// HealthStatus reports simple connectivity for a gateway.
type HealthStatus struct {
	Connected bool
	Err       string
}

// TemplateRequest is a pre-approved template send. Params are positional
// template variables; MediaURL optionally attaches a single media header.
type TemplateRequest struct {
	To       string
	Template string
	Params   []string
	MediaURL string
}

// TemplateSender is the stateless request/response channel used for all
// proactively-initiated automated messages.
type TemplateSender interface {
	SendTemplate(ctx context.Context, req TemplateRequest) (*SendResult, error)
	Health(ctx context.Context) HealthStatus
}

// TextSender sends a free-form text message. Both gateways implement it;
// the template client wraps text in its plain-text payload, permitted
// once the 24-hour conversation window is open.
type TextSender interface {
	SendText(ctx context.Context, to, body string) (*SendResult, error)
}
