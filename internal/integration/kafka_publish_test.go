//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/wastewater-dashboard/internal/adapter/sheets"
	"github.com/couchcryptid/wastewater-dashboard/internal/config"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/export"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
	"github.com/couchcryptid/wastewater-dashboard/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-wastewater-viral-load"

// publishedRecord is a deserialized message read back from the topic.
type publishedRecord struct {
	Key     string
	Headers map[string]string
	Body    struct {
		ID             string   `json:"id"`
		SourceRow      int      `json:"source_row"`
		CollectionDate string   `json:"collection_date"`
		CollectionSite string   `json:"collection_site"`
		ViralLoadN1    *float64 `json:"viral_load_n1"`
	}
}

var viralSheet = domain.Table{
	Header: []string{"Data de coleta", "Local de coleta", "carga_viral_n1"},
	Rows: [][]string{
		{"01/03/2023", "ETE Serraria", "100"},
		{"08/03/2023", "ETE Serraria", "ND"},
		{"08/03/2023", "ETE São João", "999"},
		{"15/03/2023", "ETE Serraria", "140"},
	},
}

var casesSheet = domain.Table{
	Header: []string{"Data sintomas", "Município", "Casos"},
	Rows:   [][]string{{"02/03/2023", "PORTO ALEGRE", "30"}},
}

// TestPipelinePublishesViralLoad builds the dashboard twice against the same
// sheets and checks that the site's records reach Kafka exactly once.
func TestPipelinePublishesViralLoad(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	publishedAt := time.Date(2023, time.April, 1, 9, 30, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(publishedAt)

	writer := kafka.NewWriter(cfg, clock, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(pipeline.Options{
		ViralLoad:    sheets.StaticSource{Table: viralSheet},
		Cases:        sheets.StaticSource{Table: casesSheet},
		Site:         "ETE Serraria",
		Municipality: "PORTO ALEGRE",
		Exporter:     export.NewEncoder(4, metrics),
		Publisher:    writer,
		Clock:        clock,
	}, discardLogger(), metrics)

	runCtx, stopRun := context.WithCancel(ctx)
	t.Cleanup(stopRun)
	go p.Run(runCtx)

	window := p.DefaultWindow()
	for range 2 {
		_, err := p.Build(ctx, window)
		require.NoError(t, err)
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make([]publishedRecord, 0, 3)
	for range 3 {
		got = append(got, readPublished(ctx, t, consumer, 30*time.Second))
	}

	assert.Equal(t, "2023-03-01", got[0].Body.CollectionDate)
	assert.Equal(t, 0, got[0].Body.SourceRow)
	require.NotNil(t, got[0].Body.ViralLoadN1)
	assert.InDelta(t, 100, *got[0].Body.ViralLoadN1, 0.001)

	assert.Equal(t, 1, got[1].Body.SourceRow)
	assert.Nil(t, got[1].Body.ViralLoadN1, "unparseable readings are published as null")

	assert.Equal(t, 3, got[2].Body.SourceRow)

	for _, r := range got {
		assert.Equal(t, r.Body.ID, r.Key)
		assert.Equal(t, "ETE Serraria", r.Headers["collection_site"])
		assert.Equal(t, publishedAt.Format(time.RFC3339), r.Headers["published_at"])
	}

	// The second build saw identical data and must not have republished.
	readCtx, readCancel := context.WithTimeout(ctx, 3*time.Second)
	defer readCancel()
	_, err := consumer.ReadMessage(readCtx)
	require.Error(t, err, "expected no further messages")
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader, timeout time.Duration) publishedRecord {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	rec := publishedRecord{Key: string(msg.Key), Headers: make(map[string]string, len(msg.Headers))}
	for _, h := range msg.Headers {
		rec.Headers[h.Key] = string(h.Value)
	}
	require.NoError(t, json.Unmarshal(msg.Value, &rec.Body), "unmarshal message")
	return rec
}

// --- helpers ---

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("wastewater-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
