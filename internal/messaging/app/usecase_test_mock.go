package app

import (
	"context"

	"tutor_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageTransport Mock MessageTransport
type MockMessageTransport struct {
	mock.Mock
}

// GetAllMessages moke bulk fetch
func (m *MockMessageTransport) GetAllMessages(ctx context.Context, selfID string) ([]domain.MessageRecord, []domain.User, error) {
	args := m.Called(ctx, selfID)
	var records []domain.MessageRecord
	var users []domain.User
	if args.Get(0) != nil {
		records = args.Get(0).([]domain.MessageRecord)
	}
	if args.Get(1) != nil {
		users = args.Get(1).([]domain.User)
	}
	return records, users, args.Error(2)
}

// GetThread moke thread fetch
func (m *MockMessageTransport) GetThread(ctx context.Context, selfID, counterpartID string) ([]domain.MessageRecord, []domain.User, error) {
	args := m.Called(ctx, selfID, counterpartID)
	var records []domain.MessageRecord
	var users []domain.User
	if args.Get(0) != nil {
		records = args.Get(0).([]domain.MessageRecord)
	}
	if args.Get(1) != nil {
		users = args.Get(1).([]domain.User)
	}
	return records, users, args.Error(2)
}

// SendMessage moke send message
func (m *MockMessageTransport) SendMessage(ctx context.Context, selfID, receiverID, content string) (domain.MessageRecord, error) {
	args := m.Called(ctx, selfID, receiverID, content)
	if args.Get(0) != nil {
		return args.Get(0).(domain.MessageRecord), args.Error(1)
	}
	return domain.MessageRecord{}, args.Error(1)
}

// MarkRead moke mark read
func (m *MockMessageTransport) MarkRead(ctx context.Context, selfID string, messageIDs []string) error {
	args := m.Called(ctx, selfID, messageIDs)
	return args.Error(0)
}

// MockSnapshotRepository Mock SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

// Save moke save snapshot
func (m *MockSnapshotRepository) Save(ctx context.Context, selfID string, conversations []domain.Conversation) error {
	args := m.Called(ctx, selfID, conversations)
	return args.Error(0)
}

// Load moke load snapshot
func (m *MockSnapshotRepository) Load(ctx context.Context, selfID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, selfID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// Drop moke drop snapshot
func (m *MockSnapshotRepository) Drop(ctx context.Context, selfID string) error {
	args := m.Called(ctx, selfID)
	return args.Error(0)
}
