package app

import (
	"sort"

	"tutor_messaging_service/internal/messaging/domain"
)

// BuildConversationIndex 從扁平訊息清單衍生每個對方一筆的收件匣摘要。
// 純函數：同樣輸入永遠得到同樣輸出（含排序），不修改輸入。
// 規則：
//   - counterpart = 非 self 的那一方
//   - sender/receiver 缺 id 的單筆跳過（壞資料不拖垮整份衍生）
//   - 自己傳給自己的訊息跳過（收件匣沒有 self-note 畫面）
//   - lastMessage = createdAt 最大的那筆
//   - unreadCount = receiver 是 self 且未讀的筆數
//   - 排序：lastMessage.createdAt 降冪，同時間依 counterpart id 升冪
func BuildConversationIndex(records []domain.MessageRecord, users map[string]domain.User, selfID string) []domain.Conversation {
	groups := make(map[string]*domain.Conversation)

	for _, r := range records {
		if r.SenderID == "" || r.ReceiverID == "" {
			continue
		}

		counterpartID := r.CounterpartID(selfID)
		if counterpartID == selfID {
			continue
		}

		conv, ok := groups[counterpartID]
		if !ok {
			counterpart, known := users[counterpartID]
			if !known {
				counterpart = domain.User{ID: counterpartID}
			}
			conv = &domain.Conversation{
				Counterpart: counterpart,
				LastMessage: r,
			}
			groups[counterpartID] = conv
		} else if laterThan(r, conv.LastMessage) {
			conv.LastMessage = r
		}

		if r.IsUnreadTo(selfID) {
			conv.UnreadCount++
		}
	}

	out := make([]domain.Conversation, 0, len(groups))
	for _, conv := range groups {
		out = append(out, *conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage.CreatedAt, out[j].LastMessage.CreatedAt
		if a.Equal(b) {
			return out[i].Counterpart.ID < out[j].Counterpart.ID
		}
		return a.After(b)
	})

	return out
}

// laterThan 同時間時依 id 決勝，讓 lastMessage 的選擇也是確定性的
func laterThan(a, b domain.MessageRecord) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}
