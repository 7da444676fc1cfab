package domain

import "errors"

// 收件匣引擎的錯誤分類
var (
	// ErrFetchFailed bulk 或 thread 拉取失敗，舊快取保留
	ErrFetchFailed = errors.New("fetch failed")
	// ErrSendFailed 發送失敗，暫存訊息已回滾
	ErrSendFailed = errors.New("send failed")
	// ErrMarkReadFailed 遠端標記已讀失敗（只記 log，不回滾）
	ErrMarkReadFailed = errors.New("mark read failed")
	// ErrMalformedRecord sender/receiver 缺失，單筆跳過
	ErrMalformedRecord = errors.New("malformed message record")
	// ErrEmptyContent 內容為空白，不建立發送
	ErrEmptyContent = errors.New("message content is empty")
	// ErrSendInFlight 同一個 session 上一筆發送尚未收斂
	ErrSendInFlight = errors.New("another send is in flight")
)
