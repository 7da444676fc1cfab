package app

import (
	"errors"

	"tutor_messaging_service/internal/messaging/domain"
	"tutor_messaging_service/pkg/logger"
	"tutor_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InboxHandler 處理收件匣相關的 HTTP 請求（tutor 端與 parent 端共用）
type InboxHandler struct {
	Usecase *InboxUseCase
}

// NewInboxHandler 創建新的 InboxHandler
func NewInboxHandler(usecase *InboxUseCase) *InboxHandler {
	return &InboxHandler{
		Usecase: usecase,
	}
}

// memberID 從 JWT middleware 取出當前使用者 id，之後都用明確參數傳遞
func memberID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(middlewares.TokenMemberID).(string)
	return id, ok && id != ""
}

// GetConversations 取得收件匣
// @Summary 取得收件匣對話清單
// @Description bulk 刷新後回傳每個對方一筆的摘要（最後訊息 + 未讀數）
// @Tags Inbox
// @Produce json
// @Success 200 {object} string "對話清單"
// @Failure 401 {object} string "未授權"
// @Router /inbox/conversations [get]
func (h *InboxHandler) GetConversations(c *fiber.Ctx) error {
	id, ok := memberID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
	}

	session := h.Usecase.Session(id)
	conversations, err := session.RefreshInbox(c.Context())
	if err != nil {
		logger.Log.Error("refresh inbox failed", zap.String("memberID", id), zap.Error(err))
		// 舊內容還在就照常出，只標記 stale
		return c.JSON(fiber.Map{"conversations": conversations, "stale": true})
	}

	return c.JSON(fiber.Map{"conversations": conversations, "stale": false})
}

// GetThread 打開一個對話
// @Summary 打開與某個對方的完整對話
// @Description 載入完整歷史，寄給自己的未讀訊息同時標記已讀
// @Tags Inbox
// @Produce json
// @Param peerID path string true "對方 id"
// @Success 200 {object} string "訊息清單"
// @Failure 401 {object} string "未授權"
// @Failure 502 {object} string "上游拉取失敗"
// @Router /inbox/thread/{peerID} [get]
func (h *InboxHandler) GetThread(c *fiber.Ctx) error {
	id, ok := memberID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
	}
	peerID := c.Params("peerID")
	if peerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing peer id"})
	}

	session := h.Usecase.Session(id)
	messages, err := session.OpenThread(c.Context(), peerID)
	if err != nil {
		logger.Log.Error("open thread failed",
			zap.String("memberID", id),
			zap.String("peerID", peerID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "thread fetch failed"})
	}

	return c.JSON(fiber.Map{"messages": messages})
}

// PostMessage 發送訊息
// @Summary 發送一則訊息
// @Description 樂觀發送：成功後回傳已和伺服器收斂的對話
// @Tags Inbox
// @Accept json
// @Produce json
// @Param request body string true "發送請求 {receiverId, content}"
// @Success 200 {object} string "發送成功"
// @Failure 400 {object} string "內容為空白"
// @Failure 409 {object} string "上一筆發送尚未收斂"
// @Failure 502 {object} string "發送失敗，已回滾"
// @Router /inbox/messages [post]
func (h *InboxHandler) PostMessage(c *fiber.Ctx) error {
	id, ok := memberID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
	}

	type request struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.ReceiverID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing receiver id"})
	}

	session := h.Usecase.Session(id)
	err := session.Send(c.Context(), req.ReceiverID, req.Content)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"message": "send success", "thread": session.CurrentThread()})
	case errors.Is(err, domain.ErrEmptyContent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is empty"})
	case errors.Is(err, domain.ErrSendInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "send in flight"})
	case errors.Is(err, domain.ErrFetchFailed):
		// 已送達但 reconcile 拉取失敗，畫面等下一次刷新
		logger.Log.Warn("send delivered but not reconciled", zap.String("memberID", id), zap.Error(err))
		return c.JSON(fiber.Map{"message": "send success", "stale": true})
	default:
		logger.Log.Error("send failed", zap.String("memberID", id), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "send failed"})
	}
}

// PostRead 標記已讀
// @Summary 標記一批訊息已讀
// @Description 本地立即生效，遠端失敗只記 log，下一次刷新收斂
// @Tags Inbox
// @Accept json
// @Produce json
// @Param request body string true "標記請求 {messageIds}"
// @Success 200 {object} string "已處理"
// @Failure 401 {object} string "未授權"
// @Router /inbox/read [post]
func (h *InboxHandler) PostRead(c *fiber.Ctx) error {
	id, ok := memberID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid session"})
	}

	type request struct {
		MessageIDs []string `json:"messageIds"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	session := h.Usecase.Session(id)
	session.MarkRead(c.Context(), req.MessageIDs)

	return c.JSON(fiber.Map{"message": "ok"})
}
