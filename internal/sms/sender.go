// Package sms delivers clear-sky alerts through a textbelt-compatible SMS
// gateway.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"clearskyalarm/pkg/clearsky"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 64 << 10
	userAgent       = "clearskyalarm/1"
)

// Config holds the configuration for creating a Sender.
type Config struct {
	URL     string
	Timeout time.Duration
}

// response is the gateway's JSON reply.
type response struct {
	Success        bool   `json:"success"`
	QuotaRemaining *int   `json:"quotaRemaining"`
	TextID         string `json:"textId"`
	Error          string `json:"error"`
}

// Sender implements clearsky.AlertTransport with a form-encoded POST of
// phone, message and key.
type Sender struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
}

var _ clearsky.AlertTransport = (*Sender)(nil)

// NewSender creates a Sender. Returns an error if the URL is invalid.
func NewSender(logger *zap.Logger, cfg Config) (*Sender, error) {
	if cfg.URL == "" {
		return nil, errors.New("SMS gateway URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid SMS gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("SMS gateway URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("SMS gateway URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sender{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("sms"),
		url:        cfg.URL,
	}, nil
}

// SendAlert implements clearsky.AlertTransport. A gateway that answers with
// success=false is not an error here; the receipt carries its message.
func (s *Sender) SendAlert(ctx context.Context, alert clearsky.Alert) (clearsky.AlertReceipt, error) {
	form := url.Values{
		"phone":   {alert.Recipient},
		"message": {alert.Message},
		"key":     {alert.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return clearsky.AlertReceipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return clearsky.AlertReceipt{}, fmt.Errorf("post to SMS gateway: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return clearsky.AlertReceipt{}, fmt.Errorf("read SMS gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return clearsky.AlertReceipt{}, fmt.Errorf("SMS gateway returned HTTP %d", resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return clearsky.AlertReceipt{}, fmt.Errorf("decode SMS gateway response: %w", err)
	}

	s.logger.Debug("SMS gateway replied",
		zap.String("phone", maskPhone(alert.Recipient)),
		zap.Bool("success", r.Success),
		zap.String("text_id", r.TextID),
		zap.Duration("elapsed", time.Since(start)),
	)

	receipt := clearsky.AlertReceipt{Success: r.Success, Error: r.Error}
	if r.QuotaRemaining != nil {
		receipt.HasQuota = true
		receipt.QuotaRemaining = *r.QuotaRemaining
	}
	return receipt, nil
}

// maskPhone keeps the last three digits of a phone number for logging.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
