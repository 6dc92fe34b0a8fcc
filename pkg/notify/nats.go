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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/probewatch/pkg/logger"
)

const (
	natsSinkName       = "nats"
	DefaultNATSSubject = "probewatch.health"
)

// NATSConfig enables the NATS sink when URL is set. With Stream set, events
// go through JetStream into that stream, which is created on demand.
type NATSConfig struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
	Stream  string `json:"stream,omitempty" yaml:"stream,omitempty"`
}

// NATSPublisher publishes each message as JSON on "<subject>.<kind>".
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  logger.Logger
}

// ConnectNATS dials the server and, for JetStream, makes sure the stream
// exists.
func ConnectNATS(ctx context.Context, cfg NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*NATSPublisher, error) {
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultNATSSubject
	}

	opts := append([]nats.Option{
		nats.Name("probewatch"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNATSConnect, err)
	}

	p := &NATSPublisher{nc: nc, subject: subject, logger: log}

	if cfg.Stream == "" {
		return p, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{subject + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create or get stream %s: %w", cfg.Stream, err)
	}

	p.js = js

	return p, nil
}

func (*NATSPublisher) Name() string { return natsSinkName }

// Subject is the subject msg is published on.
func (p *NATSPublisher) Subject(msg *Message) string {
	return p.subject + "." + string(msg.Kind)
}

// Notify publishes msg and waits for the server to take it.
func (p *NATSPublisher) Notify(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal health event: %w", err)
	}

	subject := p.Subject(msg)

	if p.js != nil {
		ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msg.ID))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNATSPublish, err)
		}

		p.logger.Debug().Str("subject", subject).Uint64("seq", ack.Sequence).Msg("Published health event")

		return nil
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("%w: %w", ErrNATSPublish, err)
	}

	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrNATSPublish, err)
	}

	return nil
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for !p.nc.IsClosed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	return nil
}
