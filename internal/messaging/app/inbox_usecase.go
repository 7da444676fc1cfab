package app

import (
	"context"
	"sync"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/internal/messaging/repository"
	"tutor_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// InboxSession 一個登入使用者的對話引擎。身分由外部 session 取得後
// 明確傳進來，引擎本身絕不讀全域狀態。
// 操作以 session 為單位互斥：單一寫入者，衍生值整份換掉
type InboxSession struct {
	selfID    string
	transport repository.MessageTransport
	snapshots repository.SnapshotRepository // 可為 nil，redis 掛了只是少了第一屏

	mu     sync.Mutex
	store  *MessageStore
	thread *ActiveThreadCache
	sender *OptimisticSendController
	reader *ReadReceiptSynchronizer
	users  map[string]domain.User

	conversations []domain.Conversation
	refreshed     bool
}

// NewInboxSession create an InboxSession for selfID
func NewInboxSession(selfID string, transport repository.MessageTransport, snapshots repository.SnapshotRepository) *InboxSession {
	s := &InboxSession{
		selfID:    selfID,
		transport: transport,
		snapshots: snapshots,
		store:     NewMessageStore(),
		thread:    NewActiveThreadCache(),
		users:     make(map[string]domain.User),
	}
	s.sender = NewOptimisticSendController(transport, s.store, s.thread, s.users, &s.mu)
	s.reader = NewReadReceiptSynchronizer(transport, s.store, s.thread, &s.mu)
	return s
}

// rebuildIndexLocked 重新衍生收件匣摘要，呼叫端必須持有 s.mu
func (s *InboxSession) rebuildIndexLocked() {
	s.conversations = BuildConversationIndex(s.store.Snapshot(), s.users, s.selfID)
}

// mergeUsersLocked 併入 id→User 查表，呼叫端必須持有 s.mu
func (s *InboxSession) mergeUsersLocked(users []domain.User) {
	for _, u := range users {
		s.users[u.ID] = u
	}
}

// RefreshInbox bulk 刷新後重新衍生收件匣。拉取失敗時回傳錯誤，
// 但舊內容原樣保留（stale-but-present）；一次都還沒成功過的話
// 改讀 redis snapshot，至少有上次的畫面
func (s *InboxSession) RefreshInbox(ctx context.Context) ([]domain.Conversation, error) {
	records, users, err := s.transport.GetAllMessages(ctx, s.selfID)
	if err != nil {
		s.mu.Lock()
		empty := !s.refreshed && len(s.conversations) == 0
		s.mu.Unlock()

		if empty && s.snapshots != nil {
			if snap, snapErr := s.snapshots.Load(ctx, s.selfID); snapErr == nil {
				s.mu.Lock()
				s.conversations = snap
				s.mu.Unlock()
			}
		}
		return s.Conversations(), err
	}

	s.mu.Lock()
	s.store.ReplaceAll(records)
	s.mergeUsersLocked(users)
	s.rebuildIndexLocked()
	s.refreshed = true
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, s.selfID, out); err != nil {
			logger.Log.Warn("save inbox snapshot failed", zap.String("selfID", s.selfID), zap.Error(err))
		}
	}

	return out, nil
}

// Conversations 目前衍生的收件匣摘要複本
func (s *InboxSession) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// OpenThread 切換打開的對話並拉取完整歷史。拉取發出後才切換過去的情況，
// 晚到的回應會被 token 防護丟棄，絕不會把別的對話洗進目前畫面。
// 成功載入後，寄給自己且未讀的那批訊息當場交給已讀同步器
func (s *InboxSession) OpenThread(ctx context.Context, counterpartID string) ([]domain.MessageRecord, error) {
	s.mu.Lock()
	token := s.thread.Switch(counterpartID)
	s.mu.Unlock()

	records, users, err := s.transport.GetThread(ctx, s.selfID, counterpartID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.thread.Accept(token, records) {
		// 過期回應：使用者已經切到別的對話，整包丟棄
		cur := s.thread.Current()
		s.mu.Unlock()
		return cur, nil
	}
	s.mergeUsersLocked(users)
	// thread 可能帶回 bulk 還沒有的訊息，合併進 store 而不是覆蓋
	s.store.Merge(records)
	// 批次在這個當下抓定，之後不可重算
	batch := s.thread.UnreadIDs(s.selfID)
	s.rebuildIndexLocked()
	s.mu.Unlock()

	s.reader.MarkRead(ctx, s.selfID, batch)

	s.mu.Lock()
	s.rebuildIndexLocked()
	cur := s.thread.Current()
	s.mu.Unlock()
	return cur, nil
}

// CurrentThread 目前打開對話的訊息清單複本
func (s *InboxSession) CurrentThread() []domain.MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.Current()
}

// Send 樂觀發送。回傳前收件匣摘要已跟上最新狀態
func (s *InboxSession) Send(ctx context.Context, receiverID, content string) error {
	if err := s.sender.Send(ctx, s.selfID, receiverID, content); err != nil {
		return err
	}

	s.mu.Lock()
	s.rebuildIndexLocked()
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, s.selfID, out); err != nil {
			logger.Log.Warn("save inbox snapshot failed", zap.String("selfID", s.selfID), zap.Error(err))
		}
	}
	return nil
}

// MarkRead 明確標記一批訊息已讀（例如前端離開畫面前補送）
func (s *InboxSession) MarkRead(ctx context.Context, messageIDs []string) {
	s.reader.MarkRead(ctx, s.selfID, messageIDs)

	s.mu.Lock()
	s.rebuildIndexLocked()
	s.mu.Unlock()
}

// MarkThreadRead 把目前打開對話中寄給自己的未讀全部標掉
func (s *InboxSession) MarkThreadRead(ctx context.Context) {
	s.mu.Lock()
	batch := s.thread.UnreadIDs(s.selfID)
	s.mu.Unlock()

	s.MarkRead(ctx, batch)
}

// InboxUseCase 負責管理每個登入使用者的 InboxSession
type InboxUseCase struct {
	transport repository.MessageTransport
	snapshots repository.SnapshotRepository

	mu       sync.Mutex
	sessions map[string]*InboxSession
}

// NewInboxUseCase init create inbox use case
func NewInboxUseCase(transport repository.MessageTransport, snapshots repository.SnapshotRepository) *InboxUseCase {
	return &InboxUseCase{
		transport: transport,
		snapshots: snapshots,
		sessions:  make(map[string]*InboxSession),
	}
}

// Session 取得（或建立）selfID 的對話引擎
func (uc *InboxUseCase) Session(selfID string) *InboxSession {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if s, ok := uc.sessions[selfID]; ok {
		return s
	}
	s := NewInboxSession(selfID, uc.transport, uc.snapshots)
	uc.sessions[selfID] = s
	return s
}
