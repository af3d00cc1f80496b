package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// blockedPrefixes はフィード取得先として拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // メタデータIPを含む
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// URLGuard はフィードURLの静的検証と、接続先を検証するHTTPクライアントの生成を行う。
type URLGuard struct {
	schemes []string
	ports   []int
}

// NewURLGuard はhttp/httpsの80/443番ポートのみを許可するURLGuardを生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{
		schemes: []string{"http", "https"},
		ports:   []int{80, 443},
	}
}

// Client は接続時にDNS解決後のIPアドレスを検証するHTTPクライアントを返す。
// プライベート・ループバック・リンクローカル宛ての接続はsafeurlが拒否する。
func (g *URLGuard) Client(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(g.ports...).
		Build()
	return safeurl.Client(config).Client
}

// Check はURLをDNS解決せずに検証する。設定読み込み時の事前チェックに使う。
func (g *URLGuard) Check(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URLが空です")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLのパースに失敗しました: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range g.schemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("許可されていないスキームです: %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("ホストが空です: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("ブロック対象のホストです: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("ブロック対象のIPアドレスです: %s", addr)
			}
		}
	}
	return nil
}
