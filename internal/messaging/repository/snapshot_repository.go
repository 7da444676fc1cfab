package repository

import (
	"context"
	"time"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg/database"

	"github.com/go-redis/redis/v8"
)

// SnapshotRepository 保存每個使用者最後一次成功衍生的收件匣摘要。
// bulk 拉取失敗或尚未完成時先用這份舊資料，寧可 stale 也不要空畫面
type SnapshotRepository interface {
	Save(ctx context.Context, selfID string, conversations []domain.Conversation) error
	Load(ctx context.Context, selfID string) ([]domain.Conversation, error)
	Drop(ctx context.Context, selfID string) error
}

type snapshotRepository struct {
	repo database.RedisRepository[[]domain.Conversation]
	ttl  time.Duration
}

// NewSnapshotRepository create a redis backed SnapshotRepository
func NewSnapshotRepository(client *redis.Client, ttl time.Duration) SnapshotRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &snapshotRepository{
		repo: database.NewRedisRepositoryWithClient[[]domain.Conversation](client),
		ttl:  ttl,
	}
}

func snapshotKey(selfID string) string {
	return "inbox:snapshot:" + selfID
}

func (s *snapshotRepository) Save(ctx context.Context, selfID string, conversations []domain.Conversation) error {
	return s.repo.Set(ctx, snapshotKey(selfID), conversations, s.ttl)
}

func (s *snapshotRepository) Load(ctx context.Context, selfID string) ([]domain.Conversation, error) {
	return s.repo.Get(ctx, snapshotKey(selfID))
}

func (s *snapshotRepository) Drop(ctx context.Context, selfID string) error {
	return s.repo.Del(ctx, snapshotKey(selfID))
}
