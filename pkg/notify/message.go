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

// Package notify delivers host health changes to a chat webhook and,
// optionally, to NATS subscribers.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWebhookStatus = errors.New("webhook returned non-success status")
	ErrNATSConnect   = errors.New("failed to connect to NATS")
	ErrNATSPublish   = errors.New("failed to publish health event")
)

// Kind distinguishes per-cycle changes from the periodic summary.
type Kind string

const (
	KindStateChange Kind = "state_change"
	KindSummary     Kind = "summary"
)

const (
	titleStateChange = "Probe status changed"
	titleSummary     = "Unhealthy hosts summary"
	sectionRecovered = "Recovered"
	sectionDown      = "Probe failed"
)

// Message is one notification. Entries read "service: <label>  address: <ip:port>".
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Recovered []string  `json:"recovered,omitempty"`
	Down      []string  `json:"down,omitempty"`
	Unhealthy []string  `json:"unhealthy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateChange builds the message sent when hosts recovered or went down.
func NewStateChange(recovered, down []string, now time.Time) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Kind:      KindStateChange,
		Recovered: recovered,
		Down:      down,
		Timestamp: now,
	}
}

// NewSummary builds the periodic list of hosts that are still unhealthy.
func NewSummary(unhealthy []string, now time.Time) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Kind:      KindSummary,
		Unhealthy: unhealthy,
		Timestamp: now,
	}
}

// Title is the headline shown by chat clients.
func (m *Message) Title() string {
	if m.Kind == KindSummary {
		return titleSummary
	}

	return titleStateChange
}

// Markdown renders the message body.
func (m *Message) Markdown() string {
	var b strings.Builder

	b.WriteString("### " + m.Title() + "\n")

	if m.Kind == KindSummary {
		writeQuoted(&b, m.Unhealthy)
		return b.String()
	}

	if len(m.Recovered) > 0 {
		b.WriteString("##### " + sectionRecovered + "\n")
		writeQuoted(&b, m.Recovered)
	}

	if len(m.Down) > 0 {
		b.WriteString("##### " + sectionDown + "\n")
		writeQuoted(&b, m.Down)
	}

	return b.String()
}

func writeQuoted(b *strings.Builder, items []string) {
	for _, item := range items {
		// two trailing spaces force a markdown line break
		b.WriteString("> " + item + "  \n")
	}
}

// Notifier is a delivery sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg *Message) error
}
