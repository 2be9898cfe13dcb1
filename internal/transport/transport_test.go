// internal/transport/transport_test.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "bonjour" {
			t.Errorf("message = %q, want %q", body["message"], "bonjour")
		}

		json.NewEncoder(w).Encode(map[string]string{"content": "salut"})
	}))
	defer server.Close()

	client := NewClient()
	reply, err := client.Post(context.Background(), server.URL, map[string]string{"message": "bonjour"}, Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}

	text, err := reply.Text()
	if err != nil {
		t.Fatalf("Text error: %v", err)
	}
	if text != "salut" {
		t.Errorf("Text = %q, want %q", text, "salut")
	}
}

func TestPostRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"content": "finally"})
	}))
	defer server.Close()

	client := NewClient()
	reply, err := client.Post(context.Background(), server.URL, nil, Options{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Post error after retries: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}

	text, _ := reply.Text()
	if text != "finally" {
		t.Errorf("Text = %q, want %q", text, "finally")
	}
}

func TestPostExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Post(context.Background(), server.URL, nil, Options{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", n)
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
	if !strings.Contains(terr.Message, "HTTP 500") {
		t.Errorf("Message = %q, want HTTP 500 mention", terr.Message)
	}
}

func TestPostTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"content": "too late"})
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Post(context.Background(), server.URL, nil, Options{Timeout: 20 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
	if !strings.Contains(terr.Message, "timed out") {
		t.Errorf("Message = %q, want timeout mention", terr.Message)
	}
}

func TestPostConnectionRefused(t *testing.T) {
	client := NewClient()
	_, err := client.Post(context.Background(), "http://127.0.0.1:59999", nil, Options{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected connection error")
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
}

func TestPostBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Post(context.Background(), server.URL, nil, Options{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected parse error")
	}

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *transport.Error", err)
	}
	if !strings.Contains(terr.Message, "parse response") {
		t.Errorf("Message = %q, want parse mention", terr.Message)
	}
}

func TestReplyTextDuckTyping(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"content field", map[string]any{"content": "a"}, "a"},
		{"response field", map[string]any{"response": "b"}, "b"},
		{"message field", map[string]any{"message": "c"}, "c"},
		{"content wins over response", map[string]any{"content": "a", "response": "b"}, "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := &Reply{Body: tc.body}
			got, err := reply.Text()
			if err != nil {
				t.Fatalf("Text error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Text = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReplyTextUnknownShape(t *testing.T) {
	reply := &Reply{Body: map[string]any{"data": "x", "status": "ok"}}
	if _, err := reply.Text(); err == nil {
		t.Fatal("expected error for body with no known text field")
	}
}
