package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marpelink-escrow-server/internal/ledger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesReceipt(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, "healthlink_events", logrus.New())

	r := ledger.Receipt{
		Height:    4,
		TxHash:    "0xabc",
		Operation: "completeConsultation",
		Events:    []ledger.Event{{Name: "ConsultationCompleted", Args: map[string]any{"consultationId": 1}}},
	}
	require.NoError(t, p.Publish(context.Background(), r))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("0xabc"), w.msgs[0].Key)
	assert.Equal(t, "operation", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("completeConsultation"), w.msgs[0].Headers[0].Value)

	var decoded ledger.Receipt
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, uint64(4), decoded.Height)
	assert.Equal(t, "ConsultationCompleted", decoded.Events[0].Name)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(w, "t", logrus.New())

	err := p.Publish(context.Background(), ledger.Receipt{TxHash: "0x1"})
	assert.ErrorContains(t, err, "failed to produce message: broker down")
}
