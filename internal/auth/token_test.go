package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-jwt-secret-32bytes-long!!!!"

func signTestToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestJWTVerifier_ValidToken_ReturnsIdentity(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"phone": "34600000000",
		"role":  "authenticated",
		"exp":   exp.Unix(),
		"user_metadata": map[string]any{
			"first_name": " Ana ",
			"last_name":  "Pérez",
			"full_name":  "Ana Pérez",
		},
	})

	identity, err := NewHMACVerifier(testSecret).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if identity.ID != "user-1" || identity.Email != "ana@example.com" {
		t.Errorf("unexpected identity %+v", identity)
	}
	if identity.Supplied.FirstName != "Ana" {
		t.Errorf("FirstName = %q, want %q", identity.Supplied.FirstName, "Ana")
	}
	if identity.Supplied.FullName != "Ana Pérez" {
		t.Errorf("FullName = %q, want %q", identity.Supplied.FullName, "Ana Pérez")
	}
	// user_metadataに電話番号がない場合はトップレベルのクレームを使うこと
	if identity.Supplied.Phone != "34600000000" {
		t.Errorf("Phone = %q, want %q", identity.Supplied.Phone, "34600000000")
	}
	if !identity.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", identity.ExpiresAt, exp)
	}
}

func TestJWTVerifier_RejectsInvalidTokens(t *testing.T) {
	valid := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"empty", func(*testing.T) string { return "" }},
		{"wrong secret", func(t *testing.T) string {
			return signTestToken(t, jwt.SigningMethodHS256, []byte("another-secret"), valid)
		}},
		{"expired", func(t *testing.T) string {
			return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
			})
		}},
		{"missing exp", func(t *testing.T) string {
			return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-1"})
		}},
		{"missing sub", func(t *testing.T) string {
			return signTestToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			})
		}},
		{"unexpected algorithm", func(t *testing.T) string {
			return signTestToken(t, jwt.SigningMethodHS512, []byte(testSecret), valid)
		}},
	}

	verifier := NewHMACVerifier(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(context.Background(), tt.token(t)); err == nil {
				t.Error("expected verification error")
			}
		})
	}
}
