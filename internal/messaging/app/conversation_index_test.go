package app

import (
	"testing"
	"time"

	"tutor_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/assert"
)

const selfID = "self"

// at 固定基準時間加秒數，排序測試用
func at(sec int) time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(sec) * time.Second)
}

func msg(id, sender, receiver string, sec int, isRead bool) domain.MessageRecord {
	return domain.MessageRecord{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    "content-" + id,
		CreatedAt:  at(sec),
		IsRead:     isRead,
	}
}

// 測試 每個不同的對方恰好產生一筆 Conversation
func TestBuildConversationIndex_OnePerCounterpart(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "alice", selfID, 1, true),
		msg("2", selfID, "alice", 2, true),
		msg("3", "bob", selfID, 3, false),
		msg("4", selfID, "carol", 4, true),
	}

	result := BuildConversationIndex(records, nil, selfID)

	assert.Len(t, result, 3)
	ids := []string{}
	for _, conv := range result {
		ids = append(ids, conv.Counterpart.ID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, ids)
}

// 測試 未讀數只算「寄給自己且未讀」的訊息
func TestBuildConversationIndex_UnreadCount(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "alice", selfID, 1, false),
		msg("2", "alice", selfID, 2, false),
		msg("3", "alice", selfID, 3, true),
		// 自己寄出的未讀不算在內
		msg("4", selfID, "alice", 4, false),
	}

	result := BuildConversationIndex(records, nil, selfID)

	assert.Len(t, result, 1)
	assert.Equal(t, 2, result[0].UnreadCount)
	assert.Equal(t, "4", result[0].LastMessage.ID)
}

// 測試 排序：lastMessage.createdAt 降冪
func TestBuildConversationIndex_SortedByLastMessage(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "aaa", selfID, 1, true),
		msg("2", "bbb", selfID, 2, true),
	}

	result := BuildConversationIndex(records, nil, selfID)

	assert.Len(t, result, 2)
	assert.Equal(t, "bbb", result[0].Counterpart.ID)
	assert.Equal(t, "aaa", result[1].Counterpart.ID)
}

// 測試 同時間的對話依 counterpart id 升冪決勝
func TestBuildConversationIndex_TieBreakByCounterpartID(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "zzz", selfID, 5, true),
		msg("2", "aaa", selfID, 5, true),
	}

	result := BuildConversationIndex(records, nil, selfID)

	assert.Len(t, result, 2)
	assert.Equal(t, "aaa", result[0].Counterpart.ID)
	assert.Equal(t, "zzz", result[1].Counterpart.ID)
}

// 測試 自己傳給自己與缺 id 的訊息跳過，不拖垮整份衍生
func TestBuildConversationIndex_SkipSelfAndMalformed(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", selfID, selfID, 1, false),
		{ID: "2", SenderID: "", ReceiverID: selfID, CreatedAt: at(2)},
		{ID: "3", SenderID: "alice", ReceiverID: "", CreatedAt: at(3)},
		msg("4", "alice", selfID, 4, false),
	}

	result := BuildConversationIndex(records, nil, selfID)

	assert.Len(t, result, 1)
	assert.Equal(t, "alice", result[0].Counterpart.ID)
	assert.Equal(t, 1, result[0].UnreadCount)
}

// 測試 純函數：同輸入重跑兩次，輸出（含排序）完全一致，輸入不被修改
func TestBuildConversationIndex_Idempotent(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "alice", selfID, 1, false),
		msg("2", "bob", selfID, 2, false),
		msg("3", selfID, "carol", 3, true),
	}
	original := make([]domain.MessageRecord, len(records))
	copy(original, records)

	first := BuildConversationIndex(records, nil, selfID)
	second := BuildConversationIndex(records, nil, selfID)

	assert.Equal(t, first, second)
	assert.Equal(t, original, records)
}

// 測試 空輸入回傳空清單，不會失敗
func TestBuildConversationIndex_EmptyInput(t *testing.T) {
	result := BuildConversationIndex(nil, nil, selfID)
	assert.Empty(t, result)
}

// 測試 users 查表能補上對方名稱，查不到的只有 id
func TestBuildConversationIndex_UserLookup(t *testing.T) {
	records := []domain.MessageRecord{
		msg("1", "alice", selfID, 1, false),
		msg("2", "bob", selfID, 2, false),
	}
	users := map[string]domain.User{
		"alice": {ID: "alice", Name: "Alice Chen"},
	}

	result := BuildConversationIndex(records, users, selfID)

	assert.Len(t, result, 2)
	assert.Equal(t, "", result[0].Counterpart.Name) // bob 不在查表裡
	assert.Equal(t, "Alice Chen", result[1].Counterpart.Name)
}
