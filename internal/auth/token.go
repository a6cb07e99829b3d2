package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// TokenVerifier はアクセストークンを検証し、identityを取り出す。
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*model.Identity, error)
}

// accessClaims はGoTrueが発行するアクセストークンのクレーム。
type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// JWTVerifier はjwt/v5でアクセストークンを検証する。
// 署名鍵はHS256の共有シークレットまたはJWKSから解決する。
type JWTVerifier struct {
	keyfunc func(ctx context.Context) jwt.Keyfunc
	methods []string
	leeway  time.Duration
}

// NewHMACVerifier は共有シークレット（HS256）で検証するJWTVerifierを生成する。
func NewHMACVerifier(secret string) *JWTVerifier {
	key := []byte(secret)
	return &JWTVerifier{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return key, nil }
		},
		methods: []string{"HS256"},
		leeway:  5 * time.Second,
	}
}

// NewJWKSVerifier はJWKSエンドポイントの公開鍵で検証するJWTVerifierを生成する。
// 鍵はバックグラウンドで定期的に更新される。認証サービスが起動前でも生成は成功する。
func NewJWKSVerifier(ctx context.Context, jwksURL string, client *http.Client, logger *slog.Logger) (*JWTVerifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           time.Hour,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("JWKS refresh failed",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	return &JWTVerifier{
		keyfunc: k.KeyfuncCtx,
		methods: []string{"RS256", "ES256"},
		leeway:  5 * time.Second,
	}, nil
}

// Verify はアクセストークンの署名と有効期限を検証し、identityを返す。
func (v *JWTVerifier) Verify(ctx context.Context, accessToken string) (*model.Identity, error) {
	if accessToken == "" {
		return nil, errors.New("empty access token")
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, v.keyfunc(ctx),
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("access token has no subject")
	}

	return identityFromClaims(subject, claims), nil
}

// identityFromClaims はクレームからidentityを組み立てる。
// 供給属性はuser_metadataを優先し、電話番号はトップレベルのクレームも参照する。
func identityFromClaims(subject string, c *accessClaims) *model.Identity {
	id := &model.Identity{
		ID:    subject,
		Email: c.Email,
		Role:  c.Role,
		Supplied: model.IdentityAttributes{
			Email:     metadataString(c.UserMetadata, "email"),
			Phone:     metadataString(c.UserMetadata, "phone"),
			FirstName: metadataString(c.UserMetadata, "first_name"),
			LastName:  metadataString(c.UserMetadata, "last_name"),
			FullName:  metadataString(c.UserMetadata, "full_name"),
		},
	}
	if id.Supplied.Phone == "" {
		id.Supplied.Phone = c.Phone
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// compile-time interface check
var _ TokenVerifier = (*JWTVerifier)(nil)
