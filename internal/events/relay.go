// Package events relays the appointment event log to Kafka.
package events

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// Outbox is the part of the store the relay reads from.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]appointment.EventLog, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Relay struct {
	outbox    Outbox
	writer    MessageWriter
	interval  time.Duration
	batchSize int
}

func NewRelay(outbox Outbox, writer MessageWriter, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Relay{outbox: outbox, writer: writer, interval: interval, batchSize: batchSize}
}

// NewKafkaWriter returns a writer for topic that keys partitions by
// appointment id.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func SplitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Run publishes once at startup and then on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay stopping")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	start := time.Now()
	n, err := r.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Int("published", n).Msg("event relay run failed")
		return
	}
	if n > 0 {
		log.Info().Int("published", n).Dur("took", time.Since(start)).Msg("events published")
	}
}

// RunOnce publishes one batch of unpublished events in id order and marks
// them published. Events are marked only after Kafka accepted the batch, so
// delivery is at least once.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	records, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, ev := range records {
		msgs = append(msgs, BuildMessage(ctx, ev))
		ids = append(ids, ev.ID)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	return len(records), nil
}

// BuildMessage converts a logged event into a Kafka message keyed by
// appointment id, carrying the W3C trace context of ctx.
func BuildMessage(ctx context.Context, ev appointment.EventLog) kafka.Message {
	var key []byte
	if ev.AppointmentID != nil {
		key = []byte(ev.AppointmentID.String())
	}

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(strconv.FormatInt(ev.ID, 10))},
		{Key: "event_type", Value: []byte(ev.EventType)},
	}
	carrier := headerCarrier{headers: &headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return kafka.Message{
		Key:     key,
		Value:   ev.Payload,
		Headers: headers,
		Time:    ev.CreatedAt,
	}
}

type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.headers {
		if (*c.headers)[i].Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = headerCarrier{}
