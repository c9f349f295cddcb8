package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/met-odp-etl/internal/config"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(t *testing.T) domain.MetRecord {
	t.Helper()
	raw := domain.NewRawRecord("202501010000", "13704", map[domain.Field]string{
		domain.FieldStationName: "Sopron",
		domain.FieldTemp:        "-1.2",
	})
	rec, err := domain.NewMetRecord(raw)
	require.NoError(t, err)
	return rec
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, time.January, 1, 1, 0, 0, 0, time.UTC)
	rec := testRecord(t)

	msg, err := serializeToMessage(rec, "run-1", now)
	require.NoError(t, err)

	assert.Equal(t, []byte("13704|202501010000"), msg.Key)
	assert.JSONEq(t, `{"time":202501010000,"station_number":13704,"values":{"t":-1.2},"texts":{"StationName":"Sopron"}}`, string(msg.Value))

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "station_number", msg.Headers[0].Key)
	assert.Equal(t, []byte("13704"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var back domain.MetRecord
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, rec.Key(), back.Key())
}

func TestSerializeToMessage_ProcessedAtIsUTC(t *testing.T) {
	budapest := time.FixedZone("CET", 3600)
	at := time.Date(2025, time.January, 1, 2, 0, 0, 0, budapest)

	msg, err := serializeToMessage(testRecord(t), "run-1", at)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T01:00:00Z", string(msg.Headers[2].Value))
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaSinkTopic: "met-observations"}
	w := NewWriter(cfg, "run-1", clockwork.NewFakeClock(), slog.Default())
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.LoadBatch(context.Background(), nil))
}
