package repository

import (
	"context"

	"tutor_messaging_service/internal/messaging/domain"
)

// MessageTransport definition marketplace 訊息 API 的四個操作
type MessageTransport interface {
	// GetAllMessages bulk 拉取 selfID 可見的所有訊息（收件匣用）
	GetAllMessages(ctx context.Context, selfID string) ([]domain.MessageRecord, []domain.User, error)
	// GetThread 拉取 selfID 與 counterpartID 之間的完整對話
	GetThread(ctx context.Context, selfID, counterpartID string) ([]domain.MessageRecord, []domain.User, error)
	// SendMessage 發送訊息，回傳伺服器指派的正式記錄
	SendMessage(ctx context.Context, selfID, receiverID, content string) (domain.MessageRecord, error)
	// MarkRead 要求上游把這批 id 標記為已讀
	MarkRead(ctx context.Context, selfID string, messageIDs []string) error
}
