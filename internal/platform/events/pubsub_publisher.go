// Package events delivers catalog lifecycle events to Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hanko-field/catalog/internal/platform/requestctx"
	"github.com/hanko-field/catalog/internal/services"
)

const (
	defaultPublishTimeout = 5 * time.Second
	defaultPublishRetries = 2
)

// PubSubProductPublisher publishes product events to a Pub/Sub topic. Acks are
// awaited in the background; Wait drains them.
type PubSubProductPublisher struct {
	topic   *pubsub.Topic
	timeout time.Duration
	retries int
	backoff gax.Backoff
	marshal func(any) ([]byte, error)
	logger  *zap.Logger
	pending sync.WaitGroup
}

// Option customises the publisher.
type Option func(*PubSubProductPublisher)

// WithPublishTimeout bounds the wait for the server acknowledgement.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(p *PubSubProductPublisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPublishRetries sets how many times a transient failure is retried
// within the publish timeout. Zero disables retries.
func WithPublishRetries(retries int) Option {
	return func(p *PubSubProductPublisher) {
		if retries >= 0 {
			p.retries = retries
		}
	}
}

// WithLogger sets the logger used for delivery failures when the publishing
// request carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(p *PubSubProductPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPubSubProductPublisher constructs a publisher bound to topic.
func NewPubSubProductPublisher(topic *pubsub.Topic, opts ...Option) (*PubSubProductPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub product publisher: topic is required")
	}
	p := &PubSubProductPublisher{
		topic:   topic,
		timeout: defaultPublishTimeout,
		retries: defaultPublishRetries,
		backoff: gax.Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2},
		marshal: json.Marshal,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Message is the JSON body of a published product event.
type Message struct {
	Event      string          `json:"event"`
	ShopID     string          `json:"shopId,omitempty"`
	ProductID  string          `json:"productId,omitempty"`
	VariantID  string          `json:"variantId,omitempty"`
	ProductIDs []string        `json:"productIds,omitempty"`
	Fields     []string        `json:"fields,omitempty"`
	Product    *ProductSummary `json:"product,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// ProductSummary is the subset of a product carried on events.
type ProductSummary struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Ancestors []string  `json:"ancestors,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	Title     string    `json:"title,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	ShopIDs   []string  `json:"shopIds"`
	IsVisible bool      `json:"isVisible"`
	IsDeleted bool      `json:"isDeleted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublishProductEvent enqueues event and returns without waiting for the server
// ack. Delivery runs detached from ctx cancellation; failures are logged.
func (p *PubSubProductPublisher) PublishProductEvent(ctx context.Context, event services.ProductEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub product publisher: not initialised")
	}
	if strings.TrimSpace(event.Name) == "" {
		return errors.New("pubsub product publisher: event name is required")
	}

	data, err := p.marshal(newMessage(event))
	if err != nil {
		return fmt.Errorf("marshal product event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", event.Name)
	setAttr(attrs, "shopId", event.ShopID)
	setAttr(attrs, "productId", event.ProductID)
	setAttr(attrs, "variantId", event.VariantID)

	ctx = context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if err := p.deliver(ctx, event.Name, data, attrs); err != nil {
			p.log(ctx).Warn("product event delivery failed",
				zap.String("event", event.Name),
				zap.String("productId", event.ProductID),
				zap.String("shopId", event.ShopID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every enqueued event has been acknowledged or abandoned.
func (p *PubSubProductPublisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PubSubProductPublisher) deliver(ctx context.Context, name string, data []byte, attrs map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	backoff := p.backoff
	for attempt := 0; ; attempt++ {
		result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
		_, err := result.Get(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.retries || !retryable(err) {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		if sleepErr := gax.Sleep(ctx, backoff.Pause()); sleepErr != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
}

func (p *PubSubProductPublisher) log(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return p.logger
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

func newMessage(event services.ProductEvent) Message {
	msg := Message{
		Event:      event.Name,
		ShopID:     event.ShopID,
		ProductID:  event.ProductID,
		VariantID:  event.VariantID,
		ProductIDs: event.ProductIDs,
		Fields:     event.Fields,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if view := event.Product; view != nil {
		msg.Product = &ProductSummary{
			ID:        view.ID,
			Type:      string(view.Type),
			Ancestors: view.Ancestors,
			Handle:    view.Handle,
			Title:     view.Title,
			SKU:       view.SKU,
			ShopIDs:   view.Shops.IDs(),
			IsVisible: view.IsVisible,
			IsDeleted: view.IsDeleted,
			UpdatedAt: view.UpdatedAt.UTC(),
		}
	}
	return msg
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
