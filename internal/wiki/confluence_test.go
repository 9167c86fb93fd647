package wiki

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{BaseURL: server.URL, Username: "bot", APIToken: "token"}, logger)
}

func TestSearchPagesBuildsTextCQL(t *testing.T) {
	var gotCQL string
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		gotCQL = req.URL.Query().Get("cql")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id":    "1001",
					"title": "VPN Setup",
					"body": map[string]any{
						"view": map[string]string{"value": "<h2>Steps</h2><p>Install the client.</p>"},
					},
					"_links": map[string]string{"webui": "/pages/1001"},
				},
			},
		})
	})

	pages, err := client.SearchPages(context.Background(), "vpn")
	if err != nil {
		t.Fatalf("search pages: %v", err)
	}
	if !strings.Contains(gotCQL, `text ~ "vpn"`) {
		t.Fatalf("unexpected cql: %q", gotCQL)
	}
	if len(pages) != 1 || pages[0].Title != "VPN Setup" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	if pages[0].Excerpt != "Steps Install the client." {
		t.Fatalf("excerpt must strip markup, got %q", pages[0].Excerpt)
	}
	if !strings.HasSuffix(pages[0].URL, "/pages/1001") {
		t.Fatalf("unexpected url: %q", pages[0].URL)
	}
}

func TestSearchPagesWildcardListsRecent(t *testing.T) {
	var gotCQL string
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		gotCQL = req.URL.Query().Get("cql")
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})

	if _, err := client.SearchPages(context.Background(), "*"); err != nil {
		t.Fatalf("search pages: %v", err)
	}
	if !strings.Contains(gotCQL, "order by lastmodified desc") {
		t.Fatalf("wildcard must list recent pages, got %q", gotCQL)
	}
}

func TestCreatePageUsesStorageRepresentation(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/rest/api/content" || req.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		json.NewDecoder(req.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "1002", "title": "Printer Guide"})
	})

	page, err := client.CreatePage(context.Background(), "ITSUPPORT", "Printer Guide", "<p>Steps</p>")
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if page.ID != "1002" || page.Title != "Printer Guide" {
		t.Fatalf("unexpected page: %+v", page)
	}
	space, _ := gotBody["space"].(map[string]any)
	if space == nil || space["key"] != "ITSUPPORT" {
		t.Fatalf("unexpected space: %+v", gotBody)
	}
	body, _ := gotBody["body"].(map[string]any)
	storage, _ := body["storage"].(map[string]any)
	if storage == nil || storage["representation"] != "storage" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestSearchPagesSurfacesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "no permission"}`))
	})

	if _, err := client.SearchPages(context.Background(), "vpn"); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}

func TestExcerptTruncatesLongContent(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 100) + "</p>"
	got := excerpt(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected excerpt length %d: %q", len(got), got)
	}
}
