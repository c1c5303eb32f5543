package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// echoHandler отвечает телом запроса с типом из X-Reply-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if ct := r.Header.Get("X-Reply-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("echo: " + string(body)))
}

func gzipBody(t *testing.T, s string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		compressRequest bool
		headers         map[string]string
		contentEncoding string
	}{
		{
			name:            "json response is compressed",
			body:            `{"status":"accepted"}`,
			headers:         map[string]string{"Accept-Encoding": "gzip", "X-Reply-Type": "application/json"},
			contentEncoding: "gzip",
		},
		{
			name:            "client does not accept gzip",
			body:            `{"status":"accepted"}`,
			headers:         map[string]string{"X-Reply-Type": "application/json"},
			contentEncoding: "",
		},
		{
			name:            "binary response stays as is",
			body:            "png",
			headers:         map[string]string{"Accept-Encoding": "gzip", "X-Reply-Type": "image/png"},
			contentEncoding: "",
		},
		{
			name:            "compressed request body",
			body:            `{"orderIds":["a","b"]}`,
			compressRequest: true,
			headers: map[string]string{
				"Content-Encoding": "gzip",
				"Accept-Encoding":  "gzip",
				"X-Reply-Type":     "application/json",
			},
			contentEncoding: "gzip",
		},
		{
			name:            "websocket handshake is not wrapped",
			body:            "",
			headers:         map[string]string{"Accept-Encoding": "gzip", "Upgrade": "websocket", "X-Reply-Type": "text/plain"},
			contentEncoding: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.compressRequest {
				body = gzipBody(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/test", body)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.contentEncoding)
			}

			var reader io.Reader = res.Body
			if tt.contentEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if want := "echo: " + tt.body; string(got) != want {
				t.Fatalf("body: got %q want %q", got, want)
			}
		})
	}
}

func TestGzipMiddleware_InvalidRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()

	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
}
