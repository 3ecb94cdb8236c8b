package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/retailops/pkg/db/dbtest"
	"github.com/wyfcoding/retailops/pkg/mq"
)

type fakeProducer struct {
	mu   sync.Mutex
	fail bool
	// failKeys 指定 key 的消息始终投递失败
	failKeys map[string]bool
	sent     []mq.Message
}

func (p *fakeProducer) Publish(_ context.Context, msgs ...mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	for _, m := range msgs {
		if p.failKeys[m.Key] {
			return errors.New("message too large")
		}
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func TestRelayDeliversPendingInOrder(t *testing.T) {
	d := dbtest.New(t, &OutboxMessage{})
	ctx := context.Background()
	outbox := NewOutbox(d)
	require.NoError(t, outbox.Append(ctx, "order.created", "20260307-0001", map[string]any{"order_id": 1}))
	require.NoError(t, outbox.Append(ctx, "order.created", "20260307-0002", map[string]any{"order_id": 2}))

	producer := &fakeProducer{fail: true}
	relay := NewRelay(d, producer, RelayConfig{Topic: "order.events", BatchSize: 10}, nil)

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var pending []OutboxMessage
	require.NoError(t, d.Conn(ctx).Where("status = ?", StatusPending).Find(&pending).Error)
	require.Len(t, pending, 2)
	for _, m := range pending {
		assert.Equal(t, 1, m.Attempts)
		assert.Contains(t, m.LastError, "broker unavailable")
	}

	producer.fail = false
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, producer.sent, 2)
	assert.Equal(t, "order.events", producer.sent[0].Topic)
	assert.Equal(t, "20260307-0001", producer.sent[0].Key)
	assert.Equal(t, "order.created", producer.sent[0].Headers["event_type"])
	assert.JSONEq(t, `{"order_id":1}`, string(producer.sent[0].Value))

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sent rows are not delivered twice")

	removed, err := relay.Cleanup(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	d := dbtest.New(t, &OutboxMessage{})
	producer := &fakeProducer{}
	relay := NewRelay(d, producer, RelayConfig{Topic: "order.events", PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, NewOutbox(d).Append(ctx, "order.created", "k", map[string]string{"a": "b"}))

	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelayDeadLettersPoisonMessage(t *testing.T) {
	d := dbtest.New(t, &OutboxMessage{})
	ctx := context.Background()
	outbox := NewOutbox(d)
	require.NoError(t, outbox.Append(ctx, "order.created", "poison", map[string]any{"order_id": 1}))
	require.NoError(t, outbox.Append(ctx, "order.created", "20260307-0002", map[string]any{"order_id": 2}))

	producer := &fakeProducer{failKeys: map[string]bool{"poison": true}}
	relay := NewRelay(d, producer, RelayConfig{Topic: "order.events", BatchSize: 1, MaxAttempts: 2}, nil)

	// 批次大小为 1，失败记录排在最前
	for i := 0; i < 2; i++ {
		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	var poison OutboxMessage
	require.NoError(t, d.Conn(ctx).Where("aggregate_key = ?", "poison").First(&poison).Error)
	assert.Equal(t, StatusDead, poison.Status)
	assert.Equal(t, 2, poison.Attempts)

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "later events are no longer blocked")
	require.Len(t, producer.sent, 1)
	assert.Equal(t, "20260307-0002", producer.sent[0].Key)

	removed, err := relay.Cleanup(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed, "dead rows are kept for inspection")
}
