// Package profile はプロフィールの同期と編集のドメインロジックを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// SyncRecorder は同期結果を記録するインターフェース。
type SyncRecorder interface {
	RecordProfileSync(outcome model.Outcome)
}

// Edit はユーザー自身によるプロフィール編集の入力。
type Edit struct {
	Phone     string
	FirstName string
	LastName  string
	FullName  string
}

// Service はプロフィールのサービス層。
type Service struct {
	repo     repository.ProfileRepository
	recorder SyncRecorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(repo repository.ProfileRepository, recorder SyncRecorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		now:      time.Now,
	}
}

// Sync はidentityの属性を保存済みプロフィールとマージしてアップサートする。
// 失敗してもUIには通知せず、リトライもしない。結果はSyncResultで返す。
// 保存済みプロフィールの読み取りに失敗した場合は、名前を上書きしないよう書き込みを行わない。
func (s *Service) Sync(ctx context.Context, identity *model.Identity) model.SyncResult {
	if identity == nil || identity.ID == "" {
		return s.finish("", model.SyncResult{
			Outcome: model.OutcomeFatal,
			Err:     errors.New("identity is required"),
		})
	}

	stored, err := s.repo.FindByID(ctx, identity.ID)
	if err != nil {
		return s.finish(identity.ID, model.SyncResult{
			Outcome: model.OutcomeRecoverable,
			Err:     fmt.Errorf("failed to read profile: %w", err),
		})
	}

	merged := Merge(identity, stored)
	merged.UpdatedAt = s.now()

	if err := s.repo.Upsert(ctx, merged); err != nil {
		return s.finish(identity.ID, model.SyncResult{
			Outcome: ClassifyWriteError(err),
			Err:     err,
		})
	}

	return s.finish(identity.ID, model.SyncResult{Outcome: model.OutcomeSuccess, Profile: merged})
}

func (s *Service) finish(userID string, result model.SyncResult) model.SyncResult {
	if s.recorder != nil {
		s.recorder.RecordProfileSync(result.Outcome)
	}
	if !result.OK() {
		slog.Warn("profile sync failed",
			slog.String("user_id", userID),
			slog.String("outcome", string(result.Outcome)),
			slog.String("error", result.Err.Error()),
		)
	}
	return result
}

// Get はプロフィールを取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, model.NewUserNotFoundError()
	}
	return p, nil
}

// Update はユーザー自身による編集を保存する。
// 自動同期と異なり、保存済みの氏名も書き換える。full_nameが空なら再導出する。
func (s *Service) Update(ctx context.Context, userID string, edit Edit) (*model.Profile, error) {
	if err := edit.validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.Phone = strings.TrimSpace(edit.Phone)
	updated.FirstName = strings.TrimSpace(edit.FirstName)
	updated.LastName = strings.TrimSpace(edit.LastName)
	updated.FullName = strings.TrimSpace(edit.FullName)
	if updated.FullName == "" {
		updated.FullName = deriveFullName(updated.FirstName, updated.LastName)
	}
	updated.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		slog.Error("profile update failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewWriteFailedError()
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return &updated, nil
}

func (e Edit) validate() error {
	if strings.TrimSpace(e.FirstName) == "" {
		return model.NewValidationError("first_name", "O nome é obrigatorio.")
	}
	for _, f := range []struct{ name, value string }{
		{"first_name", e.FirstName},
		{"last_name", e.LastName},
		{"full_name", e.FullName},
	} {
		if err := auth.ValidateName(f.name, f.value); err != nil {
			return err
		}
	}
	return auth.ValidatePhone(e.Phone)
}

// ClassifyWriteError は書き込みエラーを再操作で回復し得るかで分類する。
// 接続断、リソース不足、シリアライズ失敗、タイムアウトは回復可能、
// 制約違反や権限エラーなど入力・設定に起因するものは致命的とする。
func ClassifyWriteError(err error) model.Outcome {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57", "58":
			return model.OutcomeRecoverable
		default:
			return model.OutcomeFatal
		}
	}
	return model.OutcomeRecoverable
}
