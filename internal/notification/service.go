// Package notification は管理パネルからの通知送信とユーザーの受信箱を提供する。
package notification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/profile"
	"github.com/hitoshi/heredeirxs/internal/repository"
	"github.com/hitoshi/heredeirxs/internal/security"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 120
	// MaxBodyLength は本文の最大文字数（サニタイズ後）。
	MaxBodyLength = 2000
	// DefaultListLimit は一覧取得の上限件数。
	DefaultListLimit = 50
)

// Sanitizer は通知本文とタイトルのサニタイズを行うインターフェース。
type Sanitizer interface {
	Notification(raw string) string
	PlainText(raw string) string
}

// SendInput は通知送信の入力。RecipientIDが空の場合は全員宛て。
type SendInput struct {
	RecipientID string
	Title       string
	Body        string
	Link        string
}

// Inbox はユーザーの受信箱。
type Inbox struct {
	Notifications []model.NotificationWithState
	Unread        int
}

// Service は通知のサービス層。
type Service struct {
	repo      repository.NotificationRepository
	profiles  repository.ProfileRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.NotificationRepository, profiles repository.ProfileRepository, sanitizer Sanitizer) *Service {
	return &Service{
		repo:      repo,
		profiles:  profiles,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Send は通知を検証・サニタイズして保存する。
// 検証エラーは外部呼び出しの前に返し、書き込みエラーはリトライしない。
// 結果のErrは常にユーザーに表示可能な*model.APIError。
func (s *Service) Send(ctx context.Context, senderID string, in SendInput) model.SendResult {
	n, err := s.build(senderID, in)
	if err != nil {
		return model.SendResult{Outcome: model.OutcomeFatal, Err: err}
	}

	if n.RecipientID != "" {
		p, err := s.profiles.FindByID(ctx, n.RecipientID)
		if err != nil {
			return s.writeFailed(n, err)
		}
		if p == nil {
			return model.SendResult{Outcome: model.OutcomeFatal, Err: model.NewUserNotFoundError()}
		}
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return s.writeFailed(n, err)
	}

	slog.Info("notification sent",
		slog.String("notification_id", n.ID),
		slog.String("sender_id", senderID),
		slog.Bool("broadcast", n.IsBroadcast()),
	)
	return model.SendResult{Outcome: model.OutcomeSuccess, Notification: n}
}

func (s *Service) writeFailed(n *model.Notification, err error) model.SendResult {
	outcome := profile.ClassifyWriteError(err)
	slog.Error("notification send failed",
		slog.String("notification_id", n.ID),
		slog.String("outcome", string(outcome)),
		slog.String("error", err.Error()),
	)
	return model.SendResult{Outcome: outcome, Err: model.NewWriteFailedError()}
}

func (s *Service) build(senderID string, in SendInput) (*model.Notification, error) {
	title := s.sanitizer.PlainText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("title", "O título é obrigatorio.")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewValidationError("title", "O título é demasiado longo.")
	}

	body := s.sanitizer.Notification(in.Body)
	if body == "" {
		return nil, model.NewValidationError("body", "A mensaxe é obrigatoria.")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, model.NewValidationError("body", "A mensaxe é demasiado longa.")
	}

	link := strings.TrimSpace(in.Link)
	if link != "" {
		if err := security.ValidateLink(link); err != nil {
			if errors.Is(err, security.ErrBlockedLink) {
				return nil, model.NewSSRFBlockedError()
			}
			return nil, model.NewInvalidURLError(link)
		}
	}

	return &model.Notification{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: strings.TrimSpace(in.RecipientID),
		Title:       title,
		Body:        body,
		Link:        link,
		CreatedAt:   s.now(),
	}, nil
}

// ListSent は送信済み通知を返す。読み取りに失敗した場合は空の一覧を返す。
func (s *Service) ListSent(ctx context.Context) []*model.Notification {
	list, err := s.repo.ListSent(ctx, DefaultListLimit)
	if err != nil {
		slog.Warn("sent notifications read failed", slog.String("error", err.Error()))
		return []*model.Notification{}
	}
	if list == nil {
		list = []*model.Notification{}
	}
	return list
}

// Delete は送信済み通知を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotificationNotFoundError(id)
		}
		slog.Error("notification delete failed",
			slog.String("notification_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewWriteFailedError()
	}
	slog.Info("notification deleted", slog.String("notification_id", id))
	return nil
}

// Inbox はユーザー宛ての通知と未読数を返す。
// 読み取りに失敗した部分は空として扱う。
func (s *Service) Inbox(ctx context.Context, userID string) Inbox {
	inbox := Inbox{Notifications: []model.NotificationWithState{}}

	list, err := s.repo.ListForUser(ctx, userID, DefaultListLimit)
	if err != nil {
		slog.Warn("inbox read failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if list != nil {
		inbox.Notifications = list
	}

	inbox.Unread = s.UnreadCount(ctx, userID)
	return inbox
}

// UnreadCount は未読数を返す。読み取りに失敗した場合は0を返す。
func (s *Service) UnreadCount(ctx context.Context, userID string) int {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		slog.Warn("unread count read failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return n
}

// MarkRead は通知を既読にする。既読済みでもエラーにならない。
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotificationNotFoundError(id)
		}
		slog.Error("notification mark read failed",
			slog.String("notification_id", id),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.NewWriteFailedError()
	}
	return nil
}
