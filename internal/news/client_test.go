package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newsswiper/internal/swipe"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/", discardLogger())
}

func TestClient_ImplementsLoader(t *testing.T) {
	var _ swipe.Loader = (*Client)(nil)
}

func TestClient_LoadItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/news" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "20" {
			t.Errorf("per_page = %q, want 20", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"id":1,"title":"first","content":"c1","image_url":"https://example.com/1.jpg","source":"S","category":"Tech","published_at":"2026-01-02T03:04:05Z","created_at":"2026-01-02T03:04:05Z"},
			{"id":2,"title":"second","content":"c2","image_url":"","source":"S","category":"Tech","published_at":"2026-01-01T03:04:05Z","created_at":"2026-01-01T03:04:05Z"}
		],"total":2,"pages":1,"current_page":1}`))
	})

	items, err := client.LoadItems(context.Background(), 20)
	if err != nil {
		t.Fatalf("LoadItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != 1 || items[0].Title != "first" || items[0].ImageURL != "https://example.com/1.jpg" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].PublishedAt.Day() != 1 {
		t.Errorf("items[1].PublishedAt = %v", items[1].PublishedAt)
	}
}

func TestClient_LoadItems_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.LoadItems(context.Background(), 20); err == nil {
		t.Error("エラーステータスではエラーが返されるべき")
	}
}

func TestClient_LoadItems_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":`))
	})

	if _, err := client.LoadItems(context.Background(), 20); err == nil {
		t.Error("不正なJSONではエラーが返されるべき")
	}
}
