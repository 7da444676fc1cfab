package app

import (
	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg"
)

// ActiveThreadCache 只保存「目前打開」那一個對話的訊息，獨立於 bulk store 拉取。
// 每次切換對方都會拿到一個遞增的 token；回應帶著發出時的 token 回來，
// token 已經不是最新就整包丟棄。沒有這個 latest-wins 防護，
// 慢回應會把別人的對話洗進目前的畫面
type ActiveThreadCache struct {
	counterpartID string
	token         uint64
	records       []domain.MessageRecord
}

// NewActiveThreadCache create an ActiveThreadCache
func NewActiveThreadCache() *ActiveThreadCache {
	return &ActiveThreadCache{}
}

// Switch 切換打開的對方：立即清空舊內容（避免新標題下渲染舊對話），
// 回傳這次拉取要攜帶的 token
func (c *ActiveThreadCache) Switch(counterpartID string) uint64 {
	c.counterpartID = counterpartID
	c.records = nil
	c.token++
	return c.token
}

// Accept 嘗試套用一個帶 token 的拉取結果。過期回應回傳 false 並整包丟棄
func (c *ActiveThreadCache) Accept(token uint64, records []domain.MessageRecord) bool {
	if token != c.token {
		return false
	}

	next := make([]domain.MessageRecord, len(records))
	copy(next, records)
	sortRecords(next)
	c.records = next
	return true
}

// CounterpartID 目前打開的對方 id，沒打開時為空字串
func (c *ActiveThreadCache) CounterpartID() string {
	return c.counterpartID
}

// Current 目前快取的訊息清單複本（createdAt 升冪)
func (c *ActiveThreadCache) Current() []domain.MessageRecord {
	out := make([]domain.MessageRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Append 附加一筆到尾端。只給樂觀發送用：新訊息依定義是最新的
func (c *ActiveThreadCache) Append(record domain.MessageRecord) {
	next := make([]domain.MessageRecord, len(c.records), len(c.records)+1)
	copy(next, c.records)
	c.records = append(next, record)
}

// RemoveByID 依 id 移除（不比對內容，合法的重複訊息不能被誤刪）
func (c *ActiveThreadCache) RemoveByID(id string) bool {
	next := make([]domain.MessageRecord, 0, len(c.records))
	removed := false
	for _, r := range c.records {
		if r.ID == id {
			removed = true
			continue
		}
		next = append(next, r)
	}
	c.records = next
	return removed
}

// ReplaceIfCurrent reconcile 用：對方還是目前打開的才整份換掉
func (c *ActiveThreadCache) ReplaceIfCurrent(counterpartID string, records []domain.MessageRecord) bool {
	if counterpartID != c.counterpartID {
		return false
	}

	next := make([]domain.MessageRecord, len(records))
	copy(next, records)
	sortRecords(next)
	c.records = next
	return true
}

// MarkRead 依 id upsert 已讀狀態（不整份換，兄弟操作可能還在途中）
func (c *ActiveThreadCache) MarkRead(messageIDs []string) {
	next := make([]domain.MessageRecord, len(c.records))
	copy(next, c.records)
	for i, r := range next {
		if !r.IsRead && pkg.Contains(messageIDs, r.ID) {
			next[i].IsRead = true
		}
	}
	c.records = next
}

// UnreadIDs 取出目前快取中「寄給 self 且未讀」的 id。
// 呼叫端必須在拿到的當下就把這批 id 交給同步器，之後不可重算，
// 否則剛抵達的未讀訊息會被錯標成已讀
func (c *ActiveThreadCache) UnreadIDs(selfID string) []string {
	var ids []string
	for _, r := range c.records {
		if r.IsUnreadTo(selfID) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
