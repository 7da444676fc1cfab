package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tutor_messaging_service/internal/messaging/domain"
	errprocess "tutor_messaging_service/pkg/err"
	"tutor_messaging_service/pkg/logger"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// wireUser 上游回傳的 user 物件
type wireUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// wireRef 上游的 sender/receiver 欄位有兩種型態：純 id 字串或內嵌 user 物件。
// 在邊界統一解析，引擎內部永遠只看 id
type wireRef struct {
	ID   string
	User *wireUser
}

// UnmarshalJSON 先嘗試字串，再嘗試物件
func (r *wireRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.ID = id
		return nil
	}

	var u wireUser
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	r.ID = u.ID
	r.User = &u
	return nil
}

// wireMessage 上游的訊息格式，createdAt 為 ISO-8601
type wireMessage struct {
	ID        string  `json:"id"`
	Sender    wireRef `json:"senderId"`
	Receiver  wireRef `json:"receiverId"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	IsRead    bool    `json:"isRead"`
}

// wireListResponse 訊息清單回應，users 表可能缺省（只有內嵌物件時由邊界收集）
type wireListResponse struct {
	Messages []wireMessage `json:"messages"`
	Users    []wireUser    `json:"users"`
}

// httpTransport 透過 marketplace REST API 實作 MessageTransport
type httpTransport struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// NewHTTPTransport create a MessageTransport against the marketplace REST API
func NewHTTPTransport(baseURL string, timeout time.Duration) MessageTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpTransport{
		client:  &fasthttp.Client{},
		baseURL: baseURL,
		timeout: timeout,
	}
}

func (t *httpTransport) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := t.client.DoTimeout(req, resp, t.timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, errprocess.Set(fmt.Sprintf("upstream status %d : %s %s", resp.StatusCode(), method, url))
	}

	// resp 釋放後 body 會被重用，必須複製
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

// normalize 把 wire 格式轉成扁平 MessageRecord + id→User 表。
// sender/receiver 缺 id 或時間無法解析的單筆跳過，不讓整批失敗
func normalize(msgs []wireMessage, users []wireUser) ([]domain.MessageRecord, []domain.User) {
	table := make(map[string]domain.User, len(users))
	for _, u := range users {
		if u.ID != "" {
			table[u.ID] = domain.User{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
		}
	}

	records := make([]domain.MessageRecord, 0, len(msgs))
	dropped := 0
	for _, m := range msgs {
		if m.ID == "" || m.Sender.ID == "" || m.Receiver.ID == "" {
			dropped++
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, m.CreatedAt)
		if err != nil {
			dropped++
			continue
		}

		// 內嵌的 user 物件收進查表
		for _, ref := range []wireRef{m.Sender, m.Receiver} {
			if ref.User != nil {
				if _, ok := table[ref.ID]; !ok {
					table[ref.ID] = domain.User{ID: ref.ID, Name: ref.User.Name, AvatarURL: ref.User.AvatarURL}
				}
			}
		}

		records = append(records, domain.MessageRecord{
			ID:         m.ID,
			SenderID:   m.Sender.ID,
			ReceiverID: m.Receiver.ID,
			Content:    m.Content,
			CreatedAt:  createdAt,
			IsRead:     m.IsRead,
		})
	}
	if dropped > 0 {
		logger.Log.Warn("dropped malformed message records", zap.Int("count", dropped))
	}

	list := make([]domain.User, 0, len(table))
	for _, u := range table {
		list = append(list, u)
	}
	return records, list
}

// GetAllMessages bulk 拉取
func (t *httpTransport) GetAllMessages(ctx context.Context, selfID string) ([]domain.MessageRecord, []domain.User, error) {
	url := fmt.Sprintf("%s/messages?self=%s", t.baseURL, selfID)
	body, err := t.do(ctx, fasthttp.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	var resp wireListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	records, users := normalize(resp.Messages, resp.Users)
	return records, users, nil
}

// GetThread 拉取單一對話
func (t *httpTransport) GetThread(ctx context.Context, selfID, counterpartID string) ([]domain.MessageRecord, []domain.User, error) {
	url := fmt.Sprintf("%s/messages/thread?self=%s&peer=%s", t.baseURL, selfID, counterpartID)
	body, err := t.do(ctx, fasthttp.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	var resp wireListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	records, users := normalize(resp.Messages, resp.Users)
	return records, users, nil
}

// SendMessage 發送訊息
func (t *httpTransport) SendMessage(ctx context.Context, selfID, receiverID, content string) (domain.MessageRecord, error) {
	payload, err := json.Marshal(map[string]string{
		"senderId":   selfID,
		"receiverId": receiverID,
		"content":    content,
	})
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	body, err := t.do(ctx, fasthttp.MethodPost, t.baseURL+"/messages", payload)
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	var msg wireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.MessageRecord{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	records, _ := normalize([]wireMessage{msg}, nil)
	if len(records) != 1 {
		return domain.MessageRecord{}, fmt.Errorf("%w: malformed server record", domain.ErrSendFailed)
	}
	return records[0], nil
}

// MarkRead 要求上游標記已讀
func (t *httpTransport) MarkRead(ctx context.Context, selfID string, messageIDs []string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"self":       selfID,
		"messageIds": messageIDs,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMarkReadFailed, err)
	}

	if _, err := t.do(ctx, fasthttp.MethodPost, t.baseURL+"/messages/read", payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMarkReadFailed, err)
	}
	return nil
}
