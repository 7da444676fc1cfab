package app

import (
	"context"
	"sync"

	"tutor_messaging_service/internal/messaging/repository"
	"tutor_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ReadReceiptSynchronizer 把一批訊息 id 標記為已讀：先改本地（畫面要即時），
// 再通知上游。上游失敗只記 log 不回滾也不重試，未讀數可能短暫偏離
// 伺服器真相，直到下一次 bulk 刷新收斂——這是接受的缺口，不是沉默的 bug
type ReadReceiptSynchronizer struct {
	transport repository.MessageTransport
	store     *MessageStore
	thread    *ActiveThreadCache
	mu        *sync.Mutex
}

// NewReadReceiptSynchronizer create a ReadReceiptSynchronizer
func NewReadReceiptSynchronizer(
	transport repository.MessageTransport,
	store *MessageStore,
	thread *ActiveThreadCache,
	mu *sync.Mutex,
) *ReadReceiptSynchronizer {
	return &ReadReceiptSynchronizer{
		transport: transport,
		store:     store,
		thread:    thread,
		mu:        mu,
	}
}

// MarkRead 對呼叫端是 fire-and-forget，內部仍同步等待遠端結果。
// messageIDs 必須是呼叫端在讀取當下抓好的批次，這裡絕不重算，
// 否則抓批次之後才抵達的未讀訊息會被一起標掉
func (s *ReadReceiptSynchronizer) MarkRead(ctx context.Context, selfID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}

	// 本地先行：store 與 thread 都用 id upsert，不整份替換
	s.mu.Lock()
	s.store.MarkRead(messageIDs)
	s.thread.MarkRead(messageIDs)
	s.mu.Unlock()

	if err := s.transport.MarkRead(ctx, selfID, messageIDs); err != nil {
		logger.Log.Warn("remote mark read failed, unread counts drift until next refresh",
			zap.String("selfID", selfID),
			zap.Int("batch", len(messageIDs)),
			zap.Error(err),
		)
	}
}
