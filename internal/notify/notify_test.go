package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealbid/internal/auction"
)

func testEvent() Event {
	return Event{
		Type:      EventClaimSettled,
		RequestID: "req-0001",
		Seq:       9,
		At:        time.Date(2022, 4, 27, 0, 0, 1, 0, time.UTC),
		Receipt: auction.Receipt{
			Hash:   common.HexToHash("0xabc"),
			Owner:  common.HexToAddress("0xb1d"),
			Winner: true,
			Shares: 10,
			Cost:   decimal.NewFromInt(10),
			Refund: decimal.NewFromInt(10),
		},
	}
}

func TestEvent_Encode(t *testing.T) {
	e := testEvent()
	payload, err := e.Encode()
	require.NoError(t, err)

	want := `{"at":"2022-04-27T00:00:01Z","receipt":{"cost":"10",` +
		`"hash":"` + e.Receipt.Hash.Hex() + `",` +
		`"owner":"` + e.Receipt.Owner.Hex() + `","refund":"10","shares":10,"winner":true},` +
		`"request_id":"req-0001","seq":9,"type":"claim.settled"}`
	assert.Equal(t, want, string(payload))
}

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

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	e := testEvent()

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, e.Receipt.Hash.Hex(), string(msg.Key))
	assert.True(t, msg.Time.Equal(e.At))
	assert.Equal(t, []kafka.Header{
		{Key: "event-type", Value: []byte(EventClaimSettled)},
		{Key: "request-id", Value: []byte("req-0001")},
	}, msg.Headers)

	payload, _ := e.Encode()
	assert.Equal(t, payload, msg.Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker unavailable")}}
	err := p.Publish(context.Background(), testEvent())
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "sealbid.receipts")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "sealbid.receipts", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Publish(context.Background(), testEvent()))
	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "req-0001", events[0].RequestID)

	require.NoError(t, Nop{}.Publish(context.Background(), testEvent()))
}
