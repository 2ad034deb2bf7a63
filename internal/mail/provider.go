package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campusdesk/campusdesk-backend/pkg/config"
)

// ProviderSender sends mail through the institution's HTTP mail provider.
type ProviderSender struct {
	url      string
	apiToken string
	from     string
	replyTo  string
	client   *http.Client
}

type providerEmail struct {
	From     string `json:"From"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody,omitempty"`
	HtmlBody string `json:"HtmlBody,omitempty"`
}

type providerResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// NewProviderSender builds the HTTP mail sender from configuration.
func NewProviderSender(cfg config.MailConfig) (*ProviderSender, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("mail provider URL is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("mail API token is required")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("mail from address is required")
	}
	return &ProviderSender{
		url:      cfg.ProviderURL,
		apiToken: cfg.APIToken,
		from:     cfg.FromAddress,
		replyTo:  cfg.ReplyTo,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Send posts one message to the provider and returns its message id.
func (p *ProviderSender) Send(ctx context.Context, email *Email) (string, error) {
	if len(email.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	payload := providerEmail{
		From:     email.From,
		ReplyTo:  email.ReplyTo,
		To:       strings.Join(email.To, ","),
		Subject:  email.Subject,
		TextBody: email.TextBody,
		HtmlBody: email.HTMLBody,
	}
	if payload.From == "" {
		payload.From = p.from
	}
	if payload.ReplyTo == "" {
		payload.ReplyTo = p.replyTo
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read mail response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mail provider error (status %d): %s", resp.StatusCode, string(responseBody))
	}

	var result providerResponse
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return "", fmt.Errorf("parse mail response: %w", err)
	}
	if result.ErrorCode != 0 {
		return "", fmt.Errorf("mail provider error %d: %s", result.ErrorCode, result.Message)
	}
	return result.MessageID, nil
}
