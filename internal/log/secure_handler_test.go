package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSecureHandler_SanitizesSensitiveKeys tests that sensitive keys are masked.
func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{
			name:     "cookie key is masked",
			key:      "cookie",
			value:    "session=abc123",
			wantMask: true,
		},
		{
			name:     "Cookie key (uppercase) is masked",
			key:      "Cookie",
			value:    "session=abc123",
			wantMask: true,
		},
		{
			name:     "authorization key is masked",
			key:      "authorization",
			value:    "Bearer token123",
			wantMask: true,
		},
		{
			name:     "x-api-key header is masked",
			key:      "x-api-key",
			value:    "apikey123",
			wantMask: true,
		},
		{
			name:     "url key is not masked",
			key:      "url",
			value:    "https://img.example.com/a.png",
			wantMask: false,
		},
		{
			name:     "referer key is not masked",
			key:      "referer",
			value:    "https://blog.example.com/",
			wantMask: false,
		},
		{
			name:     "filename key is not masked",
			key:      "filename",
			value:    "photo.png",
			wantMask: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			handler := NewSecureHandler(slog.NewTextHandler(&buf, nil))
			logger := slog.New(handler)

			logger.Info("test message", tt.key, tt.value)

			output := buf.String()
			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask %q in output: %s", MaskValue, output)
				}
			} else {
				if !strings.Contains(output, tt.value) {
					t.Errorf("expected value %q in output: %s", tt.value, output)
				}
			}
		})
	}
}

// TestSecureHandler_SanitizesSensitiveValues tests value pattern matching.
func TestSecureHandler_SanitizesSensitiveValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{
			name:  "bearer token value is masked",
			value: "Bearer abc.def.ghi",
		},
		{
			name:  "basic auth value is masked",
			value: "Basic dXNlcjpwYXNz",
		},
		{
			name:  "jwt value is masked",
			value: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			handler := NewSecureHandler(slog.NewTextHandler(&buf, nil))
			logger := slog.New(handler)

			logger.Info("test message", "header", tt.value)

			if strings.Contains(buf.String(), tt.value) {
				t.Errorf("expected value to be masked, output: %s", buf.String())
			}
		})
	}
}

// TestSecureHandler_WithAttrs tests that pre-set attributes are masked.
func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSecureHandler(slog.NewTextHandler(&buf, nil))
	logger := slog.New(handler).With("cookie", "session=secret")

	logger.Info("request sent")

	if strings.Contains(buf.String(), "session=secret") {
		t.Errorf("expected attribute set via With to be masked, output: %s", buf.String())
	}
}

// TestNewSecureLogger tests log level configuration.
func TestNewSecureLogger(t *testing.T) {
	t.Parallel()

	t.Run("verbose logs debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, true)
		logger.Debug("debug message")

		if !strings.Contains(buf.String(), "debug message") {
			t.Error("expected debug message in verbose mode")
		}
	})

	t.Run("quiet suppresses info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewSecureLogger(&buf, false)
		logger.Info("info message")

		if buf.Len() != 0 {
			t.Errorf("expected no output for info in quiet mode, got: %s", buf.String())
		}
	})
}
