package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/retailops/internal/realtime/domain"
)

func TestHubPublishReachesEveryGroupMember(t *testing.T) {
	h := NewHub(4, nil)
	a, b, c := h.NewSession(), h.NewSession(), h.NewSession()
	h.Join(domain.AdminOrdersGroup, a)
	h.Join(domain.AdminOrdersGroup, b)
	h.Join(domain.UserGroup(7), c)

	frame := domain.OrderFrame{Type: domain.FrameOrderNotification, Message: domain.OrderMessage{OrderNumber: "20260307-0001"}}
	require.NoError(t, h.Publish(context.Background(), domain.AdminOrdersGroup, frame))

	for _, s := range []*Session{a, b} {
		select {
		case data := <-s.Send():
			var got domain.OrderFrame
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, "order_notification", got.Type)
			assert.Equal(t, "20260307-0001", got.Message.OrderNumber)
		default:
			t.Fatal("frame not delivered")
		}
	}
	assert.Empty(t, c.Send())
}

func TestHubEmptyGroupIsNoop(t *testing.T) {
	h := NewHub(1, nil)
	assert.NoError(t, h.Publish(context.Background(), "user_99", map[string]string{"type": "notification"}))
	assert.Zero(t, h.Broadcast("user_99", []byte("{}")))
}

func TestHubLeave(t *testing.T) {
	h := NewHub(1, nil)
	s := h.NewSession()
	h.Join("user_1", s)
	h.Join("user_1_orders", s)
	assert.Equal(t, 1, h.GroupSize("user_1"))

	h.Leave("user_1", s)
	h.Leave("user_1", s)
	assert.Zero(t, h.GroupSize("user_1"))
	assert.Equal(t, 1, h.GroupSize("user_1_orders"))
	assert.Zero(t, h.Broadcast("user_1", []byte("{}")))
}

func TestHubEvictsSlowSession(t *testing.T) {
	h := NewHub(1, nil)
	slow, fast := h.NewSession(), h.NewSession()
	h.Join("admin_orders", slow)
	h.Join("admin_orders", fast)

	assert.Equal(t, 2, h.Broadcast("admin_orders", []byte(`{"n":1}`)))
	<-fast.Send()
	assert.Equal(t, 1, h.Broadcast("admin_orders", []byte(`{"n":2}`)))

	select {
	case <-slow.Kicked():
	default:
		t.Fatal("slow session should be evicted")
	}
	select {
	case <-fast.Kicked():
		t.Fatal("fast session must stay")
	default:
	}
	assert.Equal(t, `{"n":2}`, string(<-fast.Send()))

	// 再次写满不会重复关闭
	assert.NotPanics(t, func() { h.Broadcast("admin_orders", []byte(`{"n":3}`)) })
}

func TestGroupNames(t *testing.T) {
	assert.Equal(t, "user_42", domain.UserGroup(42))
	assert.Equal(t, "user_42_orders", domain.UserOrdersGroup(42))
	assert.Equal(t, "user_orders", domain.GroupKind("user_42_orders"))
	assert.Equal(t, "admin_orders", domain.GroupKind(domain.AdminOrdersGroup))
	assert.Equal(t, "user", domain.GroupKind("user_42"))
}
