package profile

import (
	"strings"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// Merge はidentityの供給属性と保存済みプロフィールから書き込むレコードを組み立てる。
// storedはnilでもよい。
//
//   - emailは常にidentityの値
//   - phoneは供給値 → 保存値 → ""
//   - 氏名は保存値（空白除去後に空でないもの）→ 供給値
//   - full_nameが空ならfirst + " " + lastから導出する
//
// roleは保存値をそのまま引き継ぐ。
func Merge(identity *model.Identity, stored *model.Profile) *model.Profile {
	supplied := identity.Supplied
	if stored == nil {
		stored = &model.Profile{}
	}

	p := &model.Profile{
		ID:        identity.ID,
		Email:     identity.Email,
		Phone:     firstNonEmpty(supplied.Phone, stored.Phone),
		FirstName: firstNonEmpty(stored.FirstName, supplied.FirstName),
		LastName:  firstNonEmpty(stored.LastName, supplied.LastName),
		FullName:  firstNonEmpty(stored.FullName, supplied.FullName),
		Role:      stored.Role,
	}
	if p.Email == "" {
		p.Email = firstNonEmpty(supplied.Email, stored.Email)
	}
	if p.FullName == "" {
		p.FullName = deriveFullName(p.FirstName, p.LastName)
	}
	return p
}

func deriveFullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
