//nolint:testpackage // Testing internal level parsing requires same package access
package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_ConsoleAndJSON(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatConsole} {
		l, err := New(Config{Format: format, OutputPaths: []string{"stderr"}})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		l.With(String("component", "test")).Debug("hello")
	}
}

func TestFromContext(t *testing.T) {
	stored := NewNop()
	ctx := WithContext(context.Background(), stored)
	if got := FromContext(ctx, nil); got != stored {
		t.Error("expected stored logger")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("expected nop fallback")
	}
}
