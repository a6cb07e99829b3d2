// Package model はドメインモデルを定義する。
package model

import "time"

// RoleAdmin は管理パネルへのアクセスを許可するロール。
const RoleAdmin = "admin"

// Profile はidentityごとのアプリケーション側の表示属性を表す。
// IDは認証サービスのidentity IDと一致する。
type Profile struct {
	ID        string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	FullName  string
	Role      string
	UpdatedAt time.Time
}

// IsAdmin はプロフィールが管理者ロールを持つかを返す。
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// DisplayName は画面表示用の名前を返す。
// フルネームが空の場合はメールアドレスを返す。
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// IdentityAttributes は認証サービスから供給される任意のidentity属性。
// サインアップ時のuser_metadataやトークンのクレームから取得される。
type IdentityAttributes struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	FullName  string
}

// Identity は認証済みプリンシパルを表す。
// 認証サービスが所有し、アプリケーションは読み取りのみ行う。
type Identity struct {
	ID        string
	Email     string
	Role      string
	Supplied  IdentityAttributes
	ExpiresAt time.Time
}

// Session はブラウザのセッションCookieと認証サービスのトークンの対応を表す。
// トークンはサーバー側にのみ保持し、ブラウザには不透明なIDだけを渡す。
type Session struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpires time.Time
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeedsRefresh はアクセストークンの有効期限がmargin以内に迫っているかを返す。
func (s *Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(s.TokenExpires)
}
