package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestURLGuard_Check(t *testing.T) {
	g := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://news.example.com/rss", false},
		{"http", "http://news.example.com/feed.xml", false},
		{"公開IP", "https://93.184.216.34/rss", false},
		{"空", "", true},
		{"ftpスキーム", "ftp://news.example.com/rss", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"ホストなし", "https:///rss", true},
		{"localhost", "http://localhost/rss", true},
		{"サブドメインのlocalhost", "http://feed.localhost/rss", true},
		{"ループバック", "http://127.0.0.1/rss", true},
		{"プライベート", "http://192.168.1.10/rss", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data", true},
		{"IPv6ループバック", "http://[::1]/rss", true},
		{"IPv4射影IPv6", "http://[::ffff:10.0.0.1]/rss", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestURLGuard_Client(t *testing.T) {
	g := NewURLGuard()
	client := g.Client(3 * time.Second)

	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("接続先を検証するTransportが設定されるべき")
	}
}

func TestURLGuard_Client_BlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewURLGuard().Client(2 * time.Second)
	resp, err := client.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("ループバック宛ての接続は拒否されるべき")
	}
}
