/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	webhookSinkName       = "webhook"
	defaultConnectTimeout = time.Second
	defaultRequestTimeout = 10 * time.Second
	maxErrorBody          = 2048
)

type markdownPayload struct {
	MsgType  string       `json:"msgtype"`
	Markdown markdownBody `json:"markdown"`
	At       atTargets    `json:"at"`
}

type markdownBody struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type atTargets struct {
	AtMobiles []string `json:"atMobiles"`
	IsAtAll   bool     `json:"isAtAll"`
}

// WebhookNotifier posts DingTalk-style markdown messages to a robot URL.
type WebhookNotifier struct {
	url       string
	atMobiles []string
	client    *http.Client
}

// WebhookOptions tunes a WebhookNotifier. Zero values take defaults.
type WebhookOptions struct {
	AtMobiles      []string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

func NewWebhookNotifier(url string, opts WebhookOptions) *WebhookNotifier {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
		TLSHandshakeTimeout: opts.ConnectTimeout,
	}

	mobiles := opts.AtMobiles
	if mobiles == nil {
		mobiles = []string{}
	}

	return &WebhookNotifier{
		url:       url,
		atMobiles: mobiles,
		client:    &http.Client{Transport: transport, Timeout: opts.RequestTimeout},
	}
}

func (*WebhookNotifier) Name() string { return webhookSinkName }

// Notify posts msg. Any non-2xx status is an error.
func (w *WebhookNotifier) Notify(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(markdownPayload{
		MsgType:  "markdown",
		Markdown: markdownBody{Title: msg.Title(), Text: msg.Markdown()},
		At:       atTargets{AtMobiles: w.atMobiles},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %d: %s", ErrWebhookStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
