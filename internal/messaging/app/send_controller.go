package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/internal/messaging/repository"
	"tutor_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tempIDPrefix 暫存 id 前綴，uuid 保證跨次發送不重用
const tempIDPrefix = "temp-"

// OptimisticSendController 樂觀發送：Idle → Sending → {Reconciling | RolledBack} → Idle。
// 網路呼叫是進入狀態的副作用；同一個 session 一次只允許一筆發送在途，
// 上一筆收斂（或回滾）前新的發送會被拒絕，避免暫存訊息交錯。
// 保證：任何一次發送結束後（成功或失敗），畫面上不會殘留帶暫存 id 的訊息
type OptimisticSendController struct {
	transport repository.MessageTransport
	store     *MessageStore
	thread    *ActiveThreadCache
	users     map[string]domain.User
	mu        *sync.Mutex

	state domain.SendState
}

// NewOptimisticSendController create an OptimisticSendController
func NewOptimisticSendController(
	transport repository.MessageTransport,
	store *MessageStore,
	thread *ActiveThreadCache,
	users map[string]domain.User,
	mu *sync.Mutex,
) *OptimisticSendController {
	return &OptimisticSendController{
		transport: transport,
		store:     store,
		thread:    thread,
		users:     users,
		mu:        mu,
		state:     domain.SendIdle,
	}
}

// State 目前狀態（測試用）
func (c *OptimisticSendController) State() domain.SendState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send 發送一筆訊息給 receiverID。內容為空白直接拒絕，不建立發送
func (c *OptimisticSendController) Send(ctx context.Context, selfID, receiverID, content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyContent
	}

	// Idle → Sending：檢查與轉移必須在同一把鎖裡，否則兩筆發送會同時通過
	c.mu.Lock()
	next, err := domain.NextSendState(c.state, domain.EventSendRequested)
	if err != nil {
		c.mu.Unlock()
		return domain.ErrSendInFlight
	}
	c.state = next

	// 合成暫存訊息並附加到打開中的 thread 尾端（依定義它是最新的一筆）
	tempID := tempIDPrefix + uuid.New().String()
	provisional := domain.MessageRecord{
		ID:         tempID,
		SenderID:   selfID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
		IsRead:     false,
	}
	appended := false
	if c.thread.CounterpartID() == receiverID {
		c.thread.Append(provisional)
		appended = true
	}
	c.mu.Unlock()

	// Sending 的副作用：真正打網路
	authoritative, sendErr := c.transport.SendMessage(ctx, selfID, receiverID, content)
	if sendErr != nil {
		return c.rollback(tempID, appended, sendErr)
	}

	logger.Log.Debug("send acknowledged",
		zap.String("tempID", tempID),
		zap.String("serverID", authoritative.ID),
	)

	// Sending → Reconciling：重拉權威狀態是進入 Reconciling 的副作用
	c.mu.Lock()
	c.state, _ = domain.NextSendState(c.state, domain.EventNetworkSucceeded)
	c.mu.Unlock()

	return c.reconcile(ctx, selfID, receiverID, tempID, appended)
}

// rollback Sending → RolledBack → Idle：依 temp id 移除暫存訊息
// （不比對內容，合法的重複訊息不能被誤刪），錯誤交回呼叫端，不自動重試
func (c *OptimisticSendController) rollback(tempID string, appended bool, cause error) error {
	c.mu.Lock()
	c.state, _ = domain.NextSendState(c.state, domain.EventNetworkFailed)
	if appended {
		c.thread.RemoveByID(tempID)
	}
	c.state, _ = domain.NextSendState(c.state, domain.EventAttemptSettled)
	c.mu.Unlock()

	return fmt.Errorf("%w: %v", domain.ErrSendFailed, cause)
}

// reconcile Sending → Reconciling → Idle：不信任本地的樂觀記錄，
// 重新拉權威 thread 和權威 bulk，兩個快取整份換掉。暫存 id 不可能留下，
// 而且 reconcile 重跑兩次結果相同
func (c *OptimisticSendController) reconcile(ctx context.Context, selfID, receiverID, tempID string, appended bool) error {
	threadRecords, threadUsers, err := c.transport.GetThread(ctx, selfID, receiverID)
	if err != nil {
		// 發送其實成功了，但拿不到權威狀態。為了守住「暫存 id 不殘留」，
		// 先移除暫存訊息，下一次刷新會帶回伺服器的那一筆
		return c.settleWithoutTruth(tempID, appended, err)
	}

	bulkRecords, bulkUsers, err := c.transport.GetAllMessages(ctx, selfID)
	if err != nil {
		return c.settleWithoutTruth(tempID, appended, err)
	}

	c.mu.Lock()
	c.store.ReplaceAll(bulkRecords)
	c.store.Merge(threadRecords)
	c.thread.ReplaceIfCurrent(receiverID, threadRecords)
	for _, u := range threadUsers {
		c.users[u.ID] = u
	}
	for _, u := range bulkUsers {
		c.users[u.ID] = u
	}
	c.state, _ = domain.NextSendState(c.state, domain.EventAttemptSettled)
	c.mu.Unlock()

	return nil
}

func (c *OptimisticSendController) settleWithoutTruth(tempID string, appended bool, cause error) error {
	c.mu.Lock()
	if appended {
		c.thread.RemoveByID(tempID)
	}
	c.state, _ = domain.NextSendState(c.state, domain.EventAttemptSettled)
	c.mu.Unlock()

	logger.Log.Warn("send delivered but reconcile fetch failed", zap.Error(cause))
	return fmt.Errorf("%w: %v", domain.ErrFetchFailed, cause)
}
