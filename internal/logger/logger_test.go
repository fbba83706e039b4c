package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		build     func(bool) (*zap.Logger, error)
		debug     bool
		wantDebug bool
	}{
		{name: "production info", build: func(d bool) (*zap.Logger, error) { return NewProductionLogger(d) }, wantDebug: false},
		{name: "production debug", build: func(d bool) (*zap.Logger, error) { return NewProductionLogger(d) }, debug: true, wantDebug: true},
		{name: "development info", build: NewDevelopmentLogger, wantDebug: false},
		{name: "development debug", build: NewDevelopmentLogger, debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := tt.build(tt.debug)
			if err != nil {
				t.Fatalf("build logger: %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !l.Core().Enabled(zapcore.InfoLevel) {
				t.Error("info level should always be enabled")
			}
		})
	}
}

func TestSync_NilLogger(t *testing.T) {
	t.Parallel()
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v, want nil", err)
	}
}
