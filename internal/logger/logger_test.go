package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"bogus":    defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel)
	b := Get(ErrorLevel)
	if a != b {
		t.Fatalf("expected same instance")
	}
	if child := a.With("heat_id", 1); child == nil || child.SugaredLogger == a.SugaredLogger {
		t.Fatalf("With should return a distinct child logger")
	}
	Nop().Infow("discarded", "k", "v")
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("warn") || ValidLevel("trace") {
		t.Fatalf("unexpected ValidLevel results")
	}
}
