package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GoTrueのエラー分類
var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しない場合に返される。
	ErrInvalidCredentials = errors.New("gotrue: invalid credentials")
	// ErrEmailTaken は登録済みのメールアドレスでサインアップした場合に返される。
	ErrEmailTaken = errors.New("gotrue: email already registered")
	// ErrConfirmationRequired はサインアップ後にメール確認が必要な場合に返される。
	ErrConfirmationRequired = errors.New("gotrue: email confirmation required")
	// ErrRefreshRejected はリフレッシュトークンが無効化されている場合に返される。
	ErrRefreshRejected = errors.New("gotrue: refresh token rejected")
)

// TokenResponse はGoTrueのトークンエンドポイントのレスポンス。
type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int        `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         gotrueUser `json:"user"`
}

// Expiry はアクセストークンの有効期限を返す。
// expires_atがない場合はnowとexpires_inから算出する。
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	if t.ExpiresAt > 0 {
		return time.Unix(t.ExpiresAt, 0)
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// gotrueError はGoTrueのエラーレスポンス。
// バージョンによってフィールド名が異なるため両方を受け付ける。
type gotrueError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

// GoTrue はホスティングされた認証サービスの操作を抽象化する。
type GoTrue interface {
	SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	SignOut(ctx context.Context, accessToken string) error
}

// GoTrueConfig はGoTrueClientの設定。
type GoTrueConfig struct {
	URL     string // 例: https://xyz.supabase.co
	AnonKey string

	// テスト用にオーバーライド可能なHTTPクライアント
	HTTPClient *http.Client
}

// GoTrueClient はGoTrue互換の認証APIクライアント。
type GoTrueClient struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewGoTrueClient はGoTrueClientを生成する。
func NewGoTrueClient(config GoTrueConfig) *GoTrueClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoTrueClient{
		baseURL: strings.TrimRight(config.URL, "/") + "/auth/v1",
		anonKey: config.AnonKey,
		client:  client,
	}
}

// SignInWithPassword はメールアドレスとパスワードでトークンを取得する。
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.post(ctx, "/token?grant_type=password", "", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return &resp, nil
}

// SignUp はアカウントを作成する。metadataはuser_metadataとして保存される。
// メール確認が有効な場合はトークンが返らず、ErrConfirmationRequiredを返す。
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.post(ctx, "/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, ErrConfirmationRequired
	}
	return &resp, nil
}

// Refresh はリフレッシュトークンで新しいトークンを取得する。
func (c *GoTrueClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.post(ctx, "/token?grant_type=refresh_token", "", map[string]any{
		"refresh_token": refreshToken,
	}, &resp)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, ErrRefreshRejected
	}
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return &resp, nil
}

// SignOut はアクセストークンに紐づくリフレッシュトークンを失効させる。
func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/logout", accessToken, nil, nil)
}

// post はJSONボディでPOSTし、成功時はoutにデコードする。
func (c *GoTrueClient) post(ctx context.Context, path, bearer string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return classifyGoTrueError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse auth response: %w", err)
	}
	return nil
}

// classifyGoTrueError はGoTrueのエラーレスポンスをセンチネルエラーに分類する。
func classifyGoTrueError(status int, body []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(body, &ge)

	code := ge.ErrorCode
	if code == "" {
		code = ge.Error
	}
	switch code {
	case "invalid_grant", "invalid_credentials":
		return ErrInvalidCredentials
	case "user_already_exists", "email_exists":
		return ErrEmailTaken
	}
	if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(ge.Msg), "already registered") {
		return ErrEmailTaken
	}

	msg := ge.Msg
	if msg == "" {
		msg = ge.ErrorDescription
	}
	return fmt.Errorf("auth service returned status %d: %s", status, msg)
}

// compile-time interface check
var _ GoTrue = (*GoTrueClient)(nil)
