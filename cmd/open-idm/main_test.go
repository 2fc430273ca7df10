package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEmitCommandError_StructuredForScopedCommands(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "open-idm sync",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := payload["app"]; got != "open-idm" {
		t.Fatalf("app = %v, want %q", got, "open-idm")
	}
	if got := payload["command"]; got != "open-idm sync" {
		t.Fatalf("command = %v, want %q", got, "open-idm sync")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestEmitCommandError_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "open-idm worker",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestEmitCommandError_PlainOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "open-idm connector-server hash-key",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("plain boom"), "command failed", 1, &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}

func TestEmitCommandError_CanceledOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "open-idm connector-server hash-key",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(context.Canceled, "command canceled", 130, &out)
	if got := out.String(); got != "canceled\n" {
		t.Fatalf("output = %q, want %q", got, "canceled\n")
	}
}

func TestRunMain_ExitCodes(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{CommandPath: "open-idm sync"})
	t.Cleanup(resetCommandExecutionContext)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "failure", err: errors.New("boom"), want: 1},
		{name: "canceled", err: context.Canceled, want: 130},
		{name: "run error canceled", err: runError(context.Canceled), want: 130},
		{name: "explicit code", err: &exitError{code: 3, silent: true}, want: 3},
	}
	for _, tc := range tests {
		var out bytes.Buffer
		got := runMain(func() error { return tc.err }, &out)
		if got != tc.want {
			t.Fatalf("%s: runMain() = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestClassifyExit(t *testing.T) {
	t.Parallel()

	cause := errors.New("pass failed")
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantCause error
		silent    bool
	}{
		{name: "plain", err: cause, wantCode: 1, wantCause: cause},
		{name: "canceled", err: context.Canceled, wantCode: exitCodeCanceled, wantCause: context.Canceled},
		{name: "wrapped run error", err: runError(cause), wantCode: 1, wantCause: cause},
		{name: "silent interrupt", err: runError(context.Canceled), wantCode: exitCodeCanceled, wantCause: context.Canceled, silent: true},
	}
	for _, tc := range tests {
		got := classifyExit(tc.err)
		if got.code != tc.wantCode || got.silent != tc.silent || !errors.Is(got.cause, tc.wantCause) {
			t.Fatalf("%s: classifyExit() = %+v, want code %d silent %v cause %v", tc.name, got, tc.wantCode, tc.silent, tc.wantCause)
		}
	}
}
