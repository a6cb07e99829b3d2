package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrInvalidLink はURLの形式やスキームが不正な場合に返される。
	ErrInvalidLink = errors.New("invalid link")
	// ErrBlockedLink は内部ネットワークを指すURLの場合に返される。
	ErrBlockedLink = errors.New("blocked link")
)

// NewSafeClient はプライベートアドレスへの接続を拒否するHTTPクライアントを生成する。
// 接続先のIPはsafeurlがDNS解決後に検証するため、DNSリバインディングも防げる。
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateLink は公開されたhttp(s)のURLかを静的に検証する。
// DNS解決は行わない。実際の取得はNewSafeClientのクライアントで行うこと。
func ValidateLink(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLink)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidLink, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidLink)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrInvalidLink)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublicAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedLink, addr)
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("%w: %s", ErrBlockedLink, host)
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast()
}
