// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redisstream forwards event bus events to a Redis stream
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blinklabs-io/gavel/event"
)

const (
	DefaultStream    = "gavel.events"
	DefaultQueueSize = 256
	defaultTimeout   = 5 * time.Second
)

var ErrSinkClosed = errors.New("redis stream sink is closed")

// Sink is an event.Subscriber that appends events to a Redis stream.
// Deliver only enqueues; a single worker performs the XADD calls so slow or
// unreachable Redis never stalls the publisher.
type Sink struct {
	client    *redis.Client
	ownClient bool
	logger    *slog.Logger
	queue     chan event.Event
	stream    string
	url       string
	maxLen    int64
	queueSize int
	timeout   time.Duration
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type SinkOptionFunc func(*Sink)

// WithURL specifies the Redis URL, for example redis://localhost:6379/0
func WithURL(url string) SinkOptionFunc {
	return func(s *Sink) {
		s.url = url
	}
}

// WithClient specifies an existing Redis client. The sink does not close it.
func WithClient(client *redis.Client) SinkOptionFunc {
	return func(s *Sink) {
		s.client = client
	}
}

// WithStream specifies the stream key
func WithStream(stream string) SinkOptionFunc {
	return func(s *Sink) {
		s.stream = stream
	}
}

// WithMaxLen caps the stream at approximately maxLen entries
func WithMaxLen(maxLen int64) SinkOptionFunc {
	return func(s *Sink) {
		s.maxLen = maxLen
	}
}

// WithQueueSize specifies how many events may wait for delivery
func WithQueueSize(size int) SinkOptionFunc {
	return func(s *Sink) {
		s.queueSize = size
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) SinkOptionFunc {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New creates a sink and starts its delivery worker
func New(opts ...SinkOptionFunc) (*Sink, error) {
	s := &Sink{
		stream:    DefaultStream,
		queueSize: DefaultQueueSize,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "redisstream")
	if s.client == nil {
		if s.url == "" {
			return nil, errors.New("redis URL or client is required")
		}
		opt, err := redis.ParseURL(s.url)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		s.client = redis.NewClient(opt)
		s.ownClient = true
	}
	if s.queueSize <= 0 {
		s.queueSize = DefaultQueueSize
	}
	s.queue = make(chan event.Event, s.queueSize)
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Register subscribes the sink to each of the given event types. Removing
// any of those subscriptions closes the sink.
func (s *Sink) Register(bus *event.EventBus, eventTypes ...event.EventType) {
	for _, evtType := range eventTypes {
		bus.RegisterSubscriber(evtType, s)
	}
}

// Deliver queues an event for the stream. Events are dropped when the queue
// is full.
func (s *Sink) Deliver(evt event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- evt:
	default:
		s.logger.Warn(
			"redis stream queue full, dropping event",
			"type", evt.Type,
		)
	}
	return nil
}

// Close stops the worker after draining queued events
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
		if s.ownClient {
			if err := s.client.Close(); err != nil {
				s.logger.Debug("failed to close redis client", "error", err)
			}
		}
	})
}

func (s *Sink) run() {
	defer s.wg.Done()
	for evt := range s.queue {
		if err := s.write(evt); err != nil {
			s.logger.Error(
				"failed to append event to redis stream",
				"type", evt.Type,
				"stream", s.stream,
				"error", err,
			)
		}
	}
}

func (s *Sink) write(evt event.Event) error {
	values, err := Payload(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// Payload builds the stream entry fields for an event
func Payload(evt event.Event) (map[string]any, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return map[string]any{
		"type":      string(evt.Type),
		"timestamp": evt.Timestamp.UTC().Format(time.RFC3339Nano),
		"data":      string(data),
	}, nil
}
