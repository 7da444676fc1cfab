package bdd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tutor_messaging_service/internal/messaging/app"
	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg/logger"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	logger.SetNewNop()
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Paths:  []string{"./featureFiles"}, // 指向 feature 檔相對路徑
			Format: "pretty",
			Output: os.Stdout, // 將結果輸出到終端
		},
	}

	// 若 suite.Run() != 0 表示測試失敗，可以讓 t.Fail() 或 t.Fatal()
	if suite.Run() != 0 {
		t.Fail()
	}
}

// 這個函式用來註冊 Gherkin 與 Step Definition 的對應
func InitializeScenario(s *godog.ScenarioContext) {
	s.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		resetWorld()
		return ctx, nil
	})

	s.Step(`^會員 "([^"]*)" 名稱為 "([^"]*)"$`, memberWithName)
	s.Step(`^已存在訊息 "([^"]*)" 從 "([^"]*)" 到 "([^"]*)" 內容 "([^"]*)"$`, messageExists)
	s.Step(`^後端發送功能故障$`, backendSendBroken)
	s.Step(`^"([^"]*)" 刷新收件匣$`, refreshInbox)
	s.Step(`^"([^"]*)" 開啟與 "([^"]*)" 的對話串$`, openThread)
	s.Step(`^"([^"]*)" 發送訊息 "([^"]*)" 給 "([^"]*)"$`, sendMessage)
	s.Step(`^收件匣應依序顯示 "([^"]*)"$`, inboxShowsInOrder)
	s.Step(`^對話對象 "([^"]*)" 的未讀數應為 (\d+)$`, unreadCountShouldBe)
	s.Step(`^對話串應包含 (\d+) 則訊息$`, threadShouldContainMessages)
	s.Step(`^對話串不應包含訊息 "([^"]*)"$`, threadShouldNotContainContent)
	s.Step(`^後端應收到已讀回報 "([^"]*)"$`, backendReceivedReadReceipt)
	s.Step(`^後端應儲存來自 "([^"]*)" 的訊息 "([^"]*)"$`, backendStoredMessageFrom)
	s.Step(`^發送應成功$`, sendShouldSucceed)
	s.Step(`^發送應回傳錯誤$`, sendShouldFail)
}

// fakeMarketplace 模擬 marketplace 後端的訊息儲存
type fakeMarketplace struct {
	mu       sync.Mutex
	messages []domain.MessageRecord
	users    map[string]domain.User
	readIDs  []string
	failSend bool
	nextID   int
	clock    time.Time
}

func (f *fakeMarketplace) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeMarketplace) userList() []domain.User {
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out
}

func (f *fakeMarketplace) GetAllMessages(_ context.Context, selfID string) ([]domain.MessageRecord, []domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MessageRecord
	for _, m := range f.messages {
		if m.SenderID == selfID || m.ReceiverID == selfID {
			out = append(out, m)
		}
	}
	return out, f.userList(), nil
}

func (f *fakeMarketplace) GetThread(_ context.Context, selfID, counterpartID string) ([]domain.MessageRecord, []domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MessageRecord
	for _, m := range f.messages {
		if (m.SenderID == selfID && m.ReceiverID == counterpartID) ||
			(m.SenderID == counterpartID && m.ReceiverID == selfID) {
			out = append(out, m)
		}
	}
	return out, f.userList(), nil
}

func (f *fakeMarketplace) SendMessage(_ context.Context, selfID, receiverID, content string) (domain.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return domain.MessageRecord{}, fmt.Errorf("marketplace unavailable")
	}
	f.nextID++
	record := domain.MessageRecord{
		ID:         fmt.Sprintf("srv-%d", f.nextID),
		SenderID:   selfID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  f.tick(),
		IsRead:     false,
	}
	f.messages = append(f.messages, record)
	return record, nil
}

func (f *fakeMarketplace) MarkRead(_ context.Context, selfID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readIDs = append(f.readIDs, messageIDs...)
	for i := range f.messages {
		for _, id := range messageIDs {
			if f.messages[i].ID == id && f.messages[i].ReceiverID == selfID {
				f.messages[i].IsRead = true
			}
		}
	}
	return nil
}

// 每個 Scenario 共用的測試狀態
var marketplace *fakeMarketplace
var session *app.InboxSession
var lastSendErr error

func resetWorld() {
	marketplace = &fakeMarketplace{
		users: map[string]domain.User{},
		clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	session = nil
	lastSendErr = nil
}

func memberWithName(id, name string) error {
	marketplace.users[id] = domain.User{ID: id, Name: name}
	return nil
}

func messageExists(id, senderID, receiverID, content string) error {
	marketplace.messages = append(marketplace.messages, domain.MessageRecord{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  marketplace.tick(),
		IsRead:     false,
	})
	return nil
}

func backendSendBroken() error {
	marketplace.failSend = true
	return nil
}

func refreshInbox(selfID string) error {
	session = app.NewInboxSession(selfID, marketplace, nil)
	_, err := session.RefreshInbox(context.Background())
	return err
}

func openThread(selfID, counterpartID string) error {
	if session == nil {
		return fmt.Errorf("no session for %s, refresh inbox first", selfID)
	}
	_, err := session.OpenThread(context.Background(), counterpartID)
	return err
}

func sendMessage(_, content, receiverID string) error {
	if session == nil {
		return fmt.Errorf("no session, refresh inbox first")
	}
	lastSendErr = session.Send(context.Background(), receiverID, content)
	return nil
}

func inboxShowsInOrder(expectedCSV string) error {
	expected := strings.Split(expectedCSV, ",")
	conversations := session.Conversations()
	if len(conversations) != len(expected) {
		return fmt.Errorf("expected %d conversations, got %d", len(expected), len(conversations))
	}
	for i, conv := range conversations {
		if conv.Counterpart.ID != expected[i] {
			return fmt.Errorf("position %d: expected %s, got %s", i, expected[i], conv.Counterpart.ID)
		}
	}
	return nil
}

func unreadCountShouldBe(counterpartID string, expected int) error {
	for _, conv := range session.Conversations() {
		if conv.Counterpart.ID == counterpartID {
			if conv.UnreadCount != expected {
				return fmt.Errorf("expected unread %d for %s, got %d", expected, counterpartID, conv.UnreadCount)
			}
			return nil
		}
	}
	return fmt.Errorf("no conversation with %s", counterpartID)
}

func threadShouldContainMessages(expected int) error {
	records := session.CurrentThread()
	if len(records) != expected {
		return fmt.Errorf("expected %d messages in thread, got %d", expected, len(records))
	}
	return nil
}

func threadShouldNotContainContent(content string) error {
	for _, record := range session.CurrentThread() {
		if record.Content == content {
			return fmt.Errorf("thread still contains %q (id=%s)", content, record.ID)
		}
	}
	return nil
}

func backendReceivedReadReceipt(expectedCSV string) error {
	expected := strings.Split(expectedCSV, ",")
	marketplace.mu.Lock()
	got := append([]string(nil), marketplace.readIDs...)
	marketplace.mu.Unlock()
	if len(got) != len(expected) {
		return fmt.Errorf("expected read receipt %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			return fmt.Errorf("expected read receipt %v, got %v", expected, got)
		}
	}
	return nil
}

func backendStoredMessageFrom(senderID, content string) error {
	marketplace.mu.Lock()
	defer marketplace.mu.Unlock()
	for _, m := range marketplace.messages {
		if m.SenderID == senderID && m.Content == content {
			return nil
		}
	}
	return fmt.Errorf("backend has no message %q from %s", content, senderID)
}

func sendShouldSucceed() error {
	if lastSendErr != nil {
		return fmt.Errorf("expected send to succeed, got %v", lastSendErr)
	}
	return nil
}

func sendShouldFail() error {
	if lastSendErr == nil {
		return fmt.Errorf("expected send to fail, but it succeeded")
	}
	return nil
}
