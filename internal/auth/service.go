// Package auth は認証サービス（GoTrue）との連携、セッション管理、
// 認証状態イベントの配信を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int           // セッション有効期間（秒）
	RefreshMargin time.Duration // 有効期限のこの時間前からトークンをリフレッシュする
}

// Service は認証に関するビジネスロジックを提供する。
// セッション状態の読み取り（Current）と購読（Broker）を一つの保持者にまとめる。
type Service struct {
	gotrue      GoTrue
	verifier    TokenVerifier
	sessionRepo repository.SessionRepository
	broker      *Broker
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	gotrue GoTrue,
	verifier TokenVerifier,
	sessionRepo repository.SessionRepository,
	broker *Broker,
	config ServiceConfig,
) *Service {
	return &Service{
		gotrue:      gotrue,
		verifier:    verifier,
		sessionRepo: sessionRepo,
		broker:      broker,
		config:      config,
		now:         time.Now,
	}
}

// Broker はイベントの購読先を返す。
func (s *Service) Broker() *Broker {
	return s.broker
}

// SignIn はメールアドレスとパスワードでサインインし、セッションを発行する。
// 成功時はSIGNED_INを配信する。locationはサインイン時に表示していたパス。
func (s *Service) SignIn(ctx context.Context, email, password, location string) (*model.Session, *model.Identity, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if password == "" {
		return nil, nil, model.NewValidationError("password", "Introduce o contrasinal.")
	}

	tokens, err := s.gotrue.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, nil, mapGoTrueError("sign in", err)
	}

	return s.establish(ctx, tokens, location)
}

// SignUp はアカウントを作成する。
// メール確認が必要な場合はErrConfirmationRequiredを返し、セッションは発行しない。
func (s *Service) SignUp(ctx context.Context, in SignUpInput, location string) (*model.Session, *model.Identity, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	tokens, err := s.gotrue.SignUp(ctx, strings.TrimSpace(in.Email), in.Password, in.metadata())
	if errors.Is(err, ErrConfirmationRequired) {
		slog.Info("sign up pending confirmation", slog.String("email", in.Email))
		return nil, nil, ErrConfirmationRequired
	}
	if err != nil {
		return nil, nil, mapGoTrueError("sign up", err)
	}

	return s.establish(ctx, tokens, location)
}

// SignOut はセッションを破棄し、SIGNED_OUTを配信する。
// 認証サービス側のログアウト失敗はローカルのセッション破棄を妨げない。
func (s *Service) SignOut(ctx context.Context, sessionID, location string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if session != nil {
		if err := s.gotrue.SignOut(ctx, session.AccessToken); err != nil {
			slog.Warn("auth service logout failed",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	s.broker.Publish(ctx, Event{Type: EventSignedOut, SessionID: sessionID, Location: location})
	return nil
}

// Current はセッションの現在のidentityを返す。匿名の場合はnilを返す。
// トークンの有効期限がRefreshMargin以内ならリフレッシュし、TOKEN_REFRESHEDを配信する。
// リフレッシュが拒否された場合はセッションを破棄し、SIGNED_OUTを配信する。
func (s *Service) Current(ctx context.Context, sessionID, location string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	refreshed := false
	if session.NeedsRefresh(s.now(), s.config.RefreshMargin) {
		ok, err := s.refresh(ctx, session, location)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		refreshed = true
	}

	identity, err := s.verifier.Verify(ctx, session.AccessToken)
	if err != nil {
		slog.Warn("stored access token rejected",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		s.expire(ctx, session, location)
		return nil, nil
	}

	if refreshed {
		s.broker.Publish(ctx, Event{
			Type:      EventTokenRefreshed,
			SessionID: session.ID,
			Identity:  identity,
			Location:  location,
		})
	}
	return identity, nil
}

// Touch は可視状態に戻ったときのセッション維持を行う。
// 必要ならトークンをリフレッシュするだけで、イベントは配信しない。
func (s *Service) Touch(ctx context.Context, sessionID, location string) error {
	if sessionID == "" {
		return nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || !session.NeedsRefresh(s.now(), s.config.RefreshMargin) {
		return nil
	}

	_, err = s.refresh(ctx, session, location)
	return err
}

// establish はトークンを検証してセッションを作成し、SIGNED_INを配信する。
func (s *Service) establish(ctx context.Context, tokens *TokenResponse, location string) (*model.Session, *model.Identity, error) {
	identity, err := s.verifier.Verify(ctx, tokens.AccessToken)
	if err != nil {
		slog.Error("issued access token failed verification", slog.String("error", err.Error()))
		return nil, nil, model.NewAuthUnavailableError()
	}

	session, err := s.createSession(ctx, identity.ID, tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", identity.ID))
	s.broker.Publish(ctx, Event{
		Type:      EventSignedIn,
		SessionID: session.ID,
		Identity:  identity,
		Location:  location,
	})
	return session, identity, nil
}

// refresh はトークンをリフレッシュして保存する。
// リフレッシュトークンが拒否された場合はセッションを破棄し、falseを返す。
func (s *Service) refresh(ctx context.Context, session *model.Session, location string) (bool, error) {
	tokens, err := s.gotrue.Refresh(ctx, session.RefreshToken)
	if errors.Is(err, ErrRefreshRejected) {
		slog.Info("refresh token rejected", slog.String("user_id", session.UserID))
		s.expire(ctx, session, location)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to refresh token: %w", err)
	}

	expires := tokens.Expiry(s.now())
	if err := s.sessionRepo.UpdateTokens(ctx, session.ID, tokens.AccessToken, tokens.RefreshToken, expires); err != nil {
		return false, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	session.TokenExpires = expires
	return true, nil
}

// expire は無効になったセッションを破棄し、SIGNED_OUTを配信する。
func (s *Service) expire(ctx context.Context, session *model.Session, location string) {
	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		slog.Error("failed to delete expired session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
	s.broker.Publish(ctx, Event{Type: EventSignedOut, SessionID: session.ID, Location: location})
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, tokens *TokenResponse) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:           sessionID,
		UserID:       userID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenExpires: tokens.Expiry(now),
		ExpiresAt:    now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// mapGoTrueError はGoTrueのエラーをユーザー向けのAPIErrorに変換する。
// 分類できないエラーは認証サービス到達不能として扱う。
func mapGoTrueError(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return model.NewInvalidCredentialsError()
	case errors.Is(err, ErrEmailTaken):
		return model.NewEmailTakenError()
	}
	slog.Error("auth service call failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return model.NewAuthUnavailableError()
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
