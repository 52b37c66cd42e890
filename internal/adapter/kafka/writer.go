package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/config"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces normalized viral-load records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// PublishViralLoad writes all records in a single WriteMessages call. Records
// are keyed by domain.RecordID, so a republished sheet lands on the same
// partitions and compacts cleanly.
func (w *Writer) PublishViralLoad(ctx context.Context, records []domain.ViralLoadRecord) error {
	if len(records) == 0 {
		return nil
	}
	publishedAt := w.clock.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d viral load records: %w", len(msgs), err)
	}
	w.logger.Debug("viral load records written", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// recordMessage is the JSON value of a published record.
type recordMessage struct {
	ID             string         `json:"id"`
	SourceRow      int            `json:"source_row"`
	CollectionDate string         `json:"collection_date"`
	CollectionSite string         `json:"collection_site"`
	ViralLoadN1    domain.Reading `json:"viral_load_n1"`
}

// serializeToMessage marshals a ViralLoadRecord into a Kafka message.
func serializeToMessage(r domain.ViralLoadRecord, publishedAt time.Time) (kafkago.Message, error) {
	id := domain.RecordID(r)
	data, err := json.Marshal(recordMessage{
		ID:             id,
		SourceRow:      r.Index,
		CollectionDate: r.CollectionDate.Format(domain.DateLayout),
		CollectionSite: r.CollectionSite,
		ViralLoadN1:    r.ViralLoadN1,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize viral load record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "collection_site", Value: []byte(r.CollectionSite)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
