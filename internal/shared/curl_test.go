package shared

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCurl = `curl 'https://amp-api.music.apple.com/v1/me/library/albums' \
  -H 'authorization: Bearer dev-token-123' \
  -H 'media-user-token: user-token-456' \
  -H 'origin: https://music.apple.com' \
  -b 'geo=US; session=abc'`

func TestParseCurlCommand(t *testing.T) {
	t.Run("extracts headers and cookie", func(t *testing.T) {
		parsed, err := ParseCurlCommand([]byte(sampleCurl))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if parsed.Headers["authorization"] != "Bearer dev-token-123" {
			t.Errorf("unexpected authorization header: %q", parsed.Headers["authorization"])
		}
		if parsed.Headers["media-user-token"] != "user-token-456" {
			t.Errorf("unexpected media-user-token header: %q", parsed.Headers["media-user-token"])
		}
		if parsed.Cookie != "geo=US; session=abc" {
			t.Errorf("unexpected cookie: %q", parsed.Cookie)
		}
	})

	t.Run("double quoted headers", func(t *testing.T) {
		cmd := `curl "https://example.com" -H "X-Test: value"`
		parsed, err := ParseCurlCommand([]byte(cmd))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if parsed.Headers["X-Test"] != "value" {
			t.Errorf("unexpected header: %q", parsed.Headers["X-Test"])
		}
	})

	t.Run("no headers fails", func(t *testing.T) {
		if _, err := ParseCurlCommand([]byte("curl https://example.com")); err == nil {
			t.Error("expected error for command without headers")
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads and parses file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "capture.sh")
		if err := os.WriteFile(path, []byte(sampleCurl), 0644); err != nil {
			t.Fatal(err)
		}

		parsed, err := ParseCurlFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(parsed.Headers) == 0 {
			t.Error("expected headers to be parsed")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/capture.sh"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestAppleMusicTokens(t *testing.T) {
	t.Run("extracts both tokens", func(t *testing.T) {
		parsed, err := ParseCurlCommand([]byte(sampleCurl))
		if err != nil {
			t.Fatal(err)
		}

		developerToken, userToken := parsed.AppleMusicTokens()
		if developerToken != "dev-token-123" {
			t.Errorf("expected bearer prefix stripped, got %q", developerToken)
		}
		if userToken != "user-token-456" {
			t.Errorf("unexpected user token: %q", userToken)
		}
	})

	t.Run("music-user-token variant", func(t *testing.T) {
		cmd := `curl 'https://example.com' -H 'Music-User-Token: mut-789'`
		parsed, err := ParseCurlCommand([]byte(cmd))
		if err != nil {
			t.Fatal(err)
		}

		_, userToken := parsed.AppleMusicTokens()
		if userToken != "mut-789" {
			t.Errorf("unexpected user token: %q", userToken)
		}
	})

	t.Run("missing headers yield empty tokens", func(t *testing.T) {
		parsed := &CurlHeaders{Headers: map[string]string{"origin": "https://music.apple.com"}}

		developerToken, userToken := parsed.AppleMusicTokens()
		if developerToken != "" || userToken != "" {
			t.Errorf("expected empty tokens, got %q / %q", developerToken, userToken)
		}
	})
}
