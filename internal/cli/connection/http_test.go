package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func envelopeHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewHTTPClient_BaseURL(t *testing.T) {
	tests := map[string]string{
		"localhost:5080":         "http://localhost:5080",
		"http://a:1/":            "http://a:1",
		"https://canvas.example": "https://canvas.example",
	}
	for in, want := range tests {
		if got := NewHTTPClient(in, time.Second).Target(); got != want {
			t.Errorf("NewHTTPClient(%q).Target() = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPClient_GetAndParse(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		envelopeHandler(200, `{"code":"OK","message":"Success","data":{"rooms":3}}`)(w, r)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.Get(context.Background(), "/admin/v1/status/summary")
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Rooms int `json:"rooms"`
	}
	if err := ParseResponse(resp, &out); err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if out.Rooms != 3 {
		t.Errorf("rooms = %d", out.Rooms)
	}
	if !strings.HasPrefix(gotUA, "canvasmesh-cli/") {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestHTTPClient_PostJSON(t *testing.T) {
	var got map[string]string
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		envelopeHandler(200, `{"code":"OK"}`)(w, r)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.URL, time.Second).Post(context.Background(), "/api/log-error", map[string]string{"error": "boom"})
	if err != nil {
		t.Fatal(err)
	}
	if err := ParseResponse(resp, nil); err != nil {
		t.Fatal(err)
	}
	if got["error"] != "boom" || ctype != "application/json" {
		t.Errorf("body = %v, content type = %q", got, ctype)
	}
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"envelope", 404, `{"code":"CM-ROOM-4040","message":"room not found","request_id":"req-1"}`, "CM-ROOM-4040", "[CM-ROOM-4040] room not found"},
		{"plain text", 502, `bad gateway`, "", "request failed with status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			envelopeHandler(tt.status, tt.body)(rec, httptest.NewRequest("GET", "/", nil))

			err := ParseResponse(rec.Result(), nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Code != tt.wantCode || err.Error() != tt.wantMsg {
				t.Errorf("APIError = %+v (%q)", apiErr, err.Error())
			}
		})
	}
}

func TestParseResponse_BadJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	envelopeHandler(200, `{`)(rec, httptest.NewRequest("GET", "/", nil))
	if err := ParseResponse(rec.Result(), nil); err == nil {
		t.Error("ParseResponse() should fail on truncated JSON")
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, time.Second).Get(context.Background(), "/health")
	if err == nil || !strings.Contains(err.Error(), url) {
		t.Errorf("error = %v, want it to name the target", err)
	}
}
