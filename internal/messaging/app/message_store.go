package app

import (
	"sort"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg"
)

// MessageStore 當前使用者可見訊息的唯一本地容器。
// 所有變更都是 copy-on-write：先組好完整的新清單再整個換掉，
// 讀取方永遠不會看到寫到一半的狀態
type MessageStore struct {
	records []domain.MessageRecord
}

// NewMessageStore create a MessageStore
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// sortRecords 依 createdAt 升冪，相同時間再依 id，確保重跑結果一致
func sortRecords(records []domain.MessageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// ReplaceAll 權威刷新：整份換掉
func (s *MessageStore) ReplaceAll(records []domain.MessageRecord) {
	next := make([]domain.MessageRecord, len(records))
	copy(next, records)
	sortRecords(next)
	s.records = next
}

// Merge 依 id upsert。thread 拉取可能帶回 bulk 還沒有的訊息，
// 必須合併而不是覆蓋，否則會丟掉較新的 bulk 狀態
func (s *MessageStore) Merge(records []domain.MessageRecord) {
	byID := make(map[string]int, len(s.records))
	next := make([]domain.MessageRecord, len(s.records))
	copy(next, s.records)
	for i, r := range next {
		byID[r.ID] = i
	}

	for _, r := range records {
		if i, ok := byID[r.ID]; ok {
			next[i] = r
			continue
		}
		byID[r.ID] = len(next)
		next = append(next, r)
	}

	sortRecords(next)
	s.records = next
}

// MarkRead 把指定 id 標記為已讀，回傳實際變更筆數
func (s *MessageStore) MarkRead(messageIDs []string) int {
	next := make([]domain.MessageRecord, len(s.records))
	copy(next, s.records)

	changed := 0
	for i, r := range next {
		if !r.IsRead && pkg.Contains(messageIDs, r.ID) {
			next[i].IsRead = true
			changed++
		}
	}

	s.records = next
	return changed
}

// Snapshot 回傳目前清單的複本
func (s *MessageStore) Snapshot() []domain.MessageRecord {
	out := make([]domain.MessageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len 目前筆數
func (s *MessageStore) Len() int {
	return len(s.records)
}
