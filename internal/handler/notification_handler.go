package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/notification"
)

// NotificationService は通知ハンドラーが必要とするサービスインターフェース。
type NotificationService interface {
	Send(ctx context.Context, senderID string, in notification.SendInput) model.SendResult
	ListSent(ctx context.Context) []*model.Notification
	Delete(ctx context.Context, id string) error
	Inbox(ctx context.Context, userID string) notification.Inbox
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationService
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type sendNotificationRequest struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Link        string `json:"link"`
}

type notificationResponse struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id,omitempty"`
	Broadcast   bool       `json:"broadcast"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Link        string     `json:"link,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type inboxResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	Unread        int                    `json:"unread"`
}

type sendResponse struct {
	Outcome      model.Outcome         `json:"outcome"`
	Notification *notificationResponse `json:"notification,omitempty"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Broadcast:   n.IsBroadcast(),
		Title:       n.Title,
		Body:        n.Body,
		Link:        n.Link,
		CreatedAt:   n.CreatedAt,
	}
}

// Inbox は自分宛ての通知を返す。
// GET /api/notifications
func (h *NotificationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	inbox := h.service.Inbox(r.Context(), userID)
	resp := inboxResponse{
		Notifications: make([]notificationResponse, len(inbox.Notifications)),
		Unread:        inbox.Unread,
	}
	for i, n := range inbox.Notifications {
		nr := toNotificationResponse(&n.Notification)
		nr.ReadAt = n.ReadAt
		resp.Notifications[i] = nr
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead は通知を既読にする。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send は通知を送信する。管理者専用。
// POST /api/admin/notifications
// 失敗時も結果分類（outcome）を含めてエラーを返す。
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req sendNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result := h.service.Send(r.Context(), userID, notification.SendInput{
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Body:        req.Body,
		Link:        req.Link,
	})
	if !result.OK() {
		handleServiceError(w, r, result.Err)
		return
	}

	nr := toNotificationResponse(result.Notification)
	writeJSON(w, http.StatusCreated, sendResponse{Outcome: result.Outcome, Notification: &nr})
}

// ListSent は送信済み通知を返す。管理者専用。
// GET /api/admin/notifications
func (h *NotificationHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	sent := h.service.ListSent(r.Context())

	resp := make([]notificationResponse, len(sent))
	for i, n := range sent {
		resp[i] = toNotificationResponse(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete は通知を削除する。管理者専用。
// DELETE /api/admin/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
