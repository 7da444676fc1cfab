package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newSendFixture() (*OptimisticSendController, *MockMessageTransport, *MessageStore, *ActiveThreadCache) {
	logger.SetNewNop()
	transport := new(MockMessageTransport)
	store := NewMessageStore()
	thread := NewActiveThreadCache()
	users := make(map[string]domain.User)
	mu := &sync.Mutex{}
	controller := NewOptimisticSendController(transport, store, thread, users, mu)
	return controller, transport, store, thread
}

// 測試 成功發送："hi" 恰好出現一次，暫存 id 不殘留，收斂後回到 Idle
func TestOptimisticSendController_SendSuccess(t *testing.T) {
	controller, transport, store, thread := newSendFixture()
	ctx := context.Background()

	token := thread.Switch("alice")
	history := msg("1", "alice", selfID, 1, true)
	thread.Accept(token, []domain.MessageRecord{history})

	server := msg("srv-1", selfID, "alice", 2, false)
	server.Content = "hi"

	transport.On("SendMessage", ctx, selfID, "alice", "hi").Return(server, nil)
	transport.On("GetThread", ctx, selfID, "alice").
		Return([]domain.MessageRecord{history, server}, []domain.User(nil), nil)
	transport.On("GetAllMessages", ctx, selfID).
		Return([]domain.MessageRecord{history, server}, []domain.User(nil), nil)

	err := controller.Send(ctx, selfID, "alice", "hi")

	assert.NoError(t, err)
	assert.Equal(t, domain.SendIdle, controller.State())

	his := 0
	for _, r := range thread.Current() {
		assert.False(t, strings.HasPrefix(r.ID, tempIDPrefix))
		if r.Content == "hi" {
			his++
		}
	}
	assert.Equal(t, 1, his)
	assert.Equal(t, 2, store.Len())
	transport.AssertExpectations(t)
}

// 測試 發送失敗：暫存訊息依 temp id 回滾，"hi" 一筆都不剩，不自動重試
func TestOptimisticSendController_SendFailureRollsBack(t *testing.T) {
	controller, transport, _, thread := newSendFixture()
	ctx := context.Background()

	token := thread.Switch("alice")
	thread.Accept(token, []domain.MessageRecord{msg("1", "alice", selfID, 1, true)})

	transport.On("SendMessage", ctx, selfID, "alice", "hi").
		Return(domain.MessageRecord{}, errors.New("network down"))

	err := controller.Send(ctx, selfID, "alice", "hi")

	assert.ErrorIs(t, err, domain.ErrSendFailed)
	assert.Equal(t, domain.SendIdle, controller.State())
	for _, r := range thread.Current() {
		assert.NotEqual(t, "hi", r.Content)
		assert.False(t, strings.HasPrefix(r.ID, tempIDPrefix))
	}
	transport.AssertExpectations(t)
	transport.AssertNotCalled(t, "GetThread", mock.Anything, mock.Anything, mock.Anything)
}

// 測試 空白內容直接拒絕，不會動到網路
func TestOptimisticSendController_EmptyContentRejected(t *testing.T) {
	controller, transport, _, _ := newSendFixture()

	err := controller.Send(context.Background(), selfID, "alice", "   ")

	assert.ErrorIs(t, err, domain.ErrEmptyContent)
	transport.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試 上一筆發送尚未收斂時，新的發送被拒絕
func TestOptimisticSendController_RejectWhileInFlight(t *testing.T) {
	controller, transport, _, _ := newSendFixture()
	controller.state = domain.SendSending

	err := controller.Send(context.Background(), selfID, "alice", "hi")

	assert.ErrorIs(t, err, domain.ErrSendInFlight)
	transport.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試 送達但 reconcile 拉取失敗：守住「暫存 id 不殘留」，錯誤歸類為 FetchFailed
func TestOptimisticSendController_ReconcileFetchFailure(t *testing.T) {
	controller, transport, _, thread := newSendFixture()
	ctx := context.Background()

	token := thread.Switch("alice")
	thread.Accept(token, nil)

	server := msg("srv-1", selfID, "alice", 2, false)
	server.Content = "hi"

	transport.On("SendMessage", ctx, selfID, "alice", "hi").Return(server, nil)
	transport.On("GetThread", ctx, selfID, "alice").
		Return([]domain.MessageRecord(nil), []domain.User(nil), errors.New("timeout"))

	err := controller.Send(ctx, selfID, "alice", "hi")

	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, domain.SendIdle, controller.State())
	assert.Empty(t, thread.Current())
	transport.AssertExpectations(t)
}

// 測試 thread 沒打開在收件人身上時，暫存訊息不附加，但發送照常進行
func TestOptimisticSendController_SendWithoutOpenThread(t *testing.T) {
	controller, transport, store, thread := newSendFixture()
	ctx := context.Background()

	server := msg("srv-1", selfID, "bob", 1, false)
	server.Content = "hi"

	transport.On("SendMessage", ctx, selfID, "bob", "hi").Return(server, nil)
	transport.On("GetThread", ctx, selfID, "bob").
		Return([]domain.MessageRecord{server}, []domain.User(nil), nil)
	transport.On("GetAllMessages", ctx, selfID).
		Return([]domain.MessageRecord{server}, []domain.User(nil), nil)

	err := controller.Send(ctx, selfID, "bob", "hi")

	assert.NoError(t, err)
	assert.Empty(t, thread.Current()) // thread 還是沒打開
	assert.Equal(t, 1, store.Len())
	transport.AssertExpectations(t)
}
