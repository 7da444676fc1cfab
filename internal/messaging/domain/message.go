package domain

import "time"

// User 表示訊息的其中一方，由 marketplace 管理，這裡只引用 id
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// MessageRecord 表示一則私訊，sender/receiver 一律已解析為純 id
type MessageRecord struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsRead     bool      `json:"isRead"`
}

// CounterpartID 取得相對於 selfID 的對方 id。自己傳給自己時回傳 selfID
func (m MessageRecord) CounterpartID(selfID string) string {
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// IsUnreadTo 該訊息對 selfID 而言是否未讀
func (m MessageRecord) IsUnreadTo(selfID string) bool {
	return m.ReceiverID == selfID && !m.IsRead
}

// Conversation 每個對方一筆的收件匣摘要（衍生值，不落地）
type Conversation struct {
	Counterpart User          `json:"counterpart"`
	LastMessage MessageRecord `json:"lastMessage"`
	UnreadCount int           `json:"unreadCount"`
}
