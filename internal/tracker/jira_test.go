package tracker

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

func TestSearchIssuesBuildsTextJQL(t *testing.T) {
	var gotJQL string
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		gotJQL = req.URL.Query().Get("jql")
		json.NewEncoder(w).Encode(map[string]any{
			"issues": []map[string]any{
				{
					"key": "SUP-1",
					"fields": map[string]any{
						"summary":   "Printer jam",
						"status":    map[string]string{"name": "Open"},
						"issuetype": map[string]string{"name": "Task"},
						"priority":  map[string]string{"name": "High"},
					},
				},
			},
		})
	})

	issues, err := client.SearchIssues(context.Background(), "printer", 5)
	if err != nil {
		t.Fatalf("search issues: %v", err)
	}
	if !strings.Contains(gotJQL, `summary ~ "printer"`) {
		t.Fatalf("unexpected jql: %q", gotJQL)
	}
	if len(issues) != 1 || issues[0].Key != "SUP-1" || issues[0].Priority != "High" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestSearchIssuesWildcardListsRecent(t *testing.T) {
	var gotJQL string
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		gotJQL = req.URL.Query().Get("jql")
		json.NewEncoder(w).Encode(map[string]any{"issues": []any{}})
	})

	if _, err := client.SearchIssues(context.Background(), "*", 5); err != nil {
		t.Fatalf("search issues: %v", err)
	}
	if gotJQL != "order by created DESC" {
		t.Fatalf("wildcard must list recent issues, got %q", gotJQL)
	}
}

func TestCreateIssueSendsFields(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/rest/api/2/issue" || req.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		json.NewDecoder(req.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"key": "SUP-42"})
	})

	issue, err := client.CreateIssue(context.Background(), CreateIssueInput{
		ProjectKey:  "SUP",
		Summary:     "Broken screen",
		Description: "Laptop screen cracked",
		IssueType:   "Task",
		Priority:    "Medium",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if issue.Key != "SUP-42" {
		t.Fatalf("unexpected key: %s", issue.Key)
	}
	fields, _ := gotBody["fields"].(map[string]any)
	if fields == nil || fields["summary"] != "Broken screen" {
		t.Fatalf("unexpected fields: %+v", gotBody)
	}
	if _, hasAssignee := fields["assignee"]; hasAssignee {
		t.Fatalf("assignee must be omitted when empty")
	}
}

func TestListTransitionsParsesTargets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"transitions": []map[string]any{
				{"id": "31", "name": "Done", "to": map[string]string{"name": "Done"}},
			},
		})
	})

	transitions, err := client.ListTransitions(context.Background(), "SUP-1")
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	if len(transitions) != 1 || transitions[0].ID != "31" || transitions[0].ToStatus != "Done" {
		t.Fatalf("unexpected transitions: %+v", transitions)
	}
}

func TestResolveIdentityTakesFirstMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("username") != "olivia" {
			t.Errorf("unexpected query: %s", req.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"accountId": "acc-1", "name": "olivia", "emailAddress": "olivia@example.com"},
			{"accountId": "acc-2", "name": "olivia2"},
		})
	})

	identity, err := client.ResolveIdentity(context.Background(), "olivia")
	if err != nil {
		t.Fatalf("resolve identity: %v", err)
	}
	if identity.AccountID != "acc-1" || identity.Email != "olivia@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestResolveIdentityNoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	})

	if _, err := client.ResolveIdentity(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected error for no matching account")
	}
}

func TestProbeFailsWithoutBaseURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := New(Config{}, logger)

	if err := client.Probe(context.Background()); err == nil {
		t.Fatalf("expected error when base url is missing")
	}
}
