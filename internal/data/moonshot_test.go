package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DevRickLin/channel-mirror/internal/infra/moonshot"
)

func newChatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Expected system and user messages, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMoonshotRepo_IsAdvertisement(t *testing.T) {
	srv := newChatServer(t, "YES")
	classifier := NewMoonshotRepo(moonshot.NewClient("key", "", srv.URL+"/v1"))

	isAd, err := classifier.IsAdvertisement(context.Background(), "招代理，日入过万")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !isAd {
		t.Error("Expected advertisement verdict")
	}
}

func TestMoonshotRepo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	classifier := NewMoonshotRepo(moonshot.NewClient("key", "", srv.URL+"/v1"))
	if _, err := classifier.IsAdvertisement(context.Background(), "text"); err == nil {
		t.Error("Expected error from failing server")
	}
}

func TestNewMoonshotRepo_Nil(t *testing.T) {
	if NewMoonshotRepo(nil) != nil {
		t.Error("Expected nil classifier without client")
	}
}

func TestParseYesNo(t *testing.T) {
	tests := map[string]bool{
		"YES":     true,
		"yes.":    true,
		" \"Yes\"": true,
		"NO":      false,
		"no":      false,
		"":        false,
		"maybe":   false,
	}
	for in, want := range tests {
		if got := parseYesNo(in); got != want {
			t.Errorf("parseYesNo(%q) = %v, want %v", in, got, want)
		}
	}
}
