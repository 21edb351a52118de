// Package dns enqueues zone refresh notifications for domains whose DNS-visible
// state changed. Publication is fire-and-forget: the registry transaction never
// waits on, or fails because of, the DNS pipeline.
package dns

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/juniorpayne/registry-core/internal/metrics"
)

// RefreshEvent is the message body consumed by the zone generation pipeline.
type RefreshEvent struct {
	DomainName string    `json:"domain_name"`
	TLD        string    `json:"tld"`
	EventTime  time.Time `json:"event_time"`
}

// Publisher enqueues DNS refresh requests.
type Publisher interface {
	PublishRefresh(ctx context.Context, ev RefreshEvent)
}

// KafkaPublisher writes refresh events to a Kafka topic keyed by domain name,
// so updates for one domain stay ordered within a partition.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Metrics, log *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: topic, metrics: m, log: log}, nil
}

// PublishRefresh produces asynchronously. Delivery failures are logged, never
// surfaced; the sweeper's periodic resave covers missed refreshes.
func (p *KafkaPublisher) PublishRefresh(ctx context.Context, ev RefreshEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal dns refresh event", "domain", ev.DomainName, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.DomainName),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Error("publish dns refresh", "domain", ev.DomainName, "error", err)
		}
	})
	if p.metrics != nil {
		p.metrics.DNSRefreshEvents.Inc()
	}
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishRefresh(context.Context, RefreshEvent) {}
