package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/open-sspm/open-idm/internal/logging"
)

const exitCodeCanceled = 130

func main() {
	os.Exit(runMain(Execute, os.Stderr))
}

// runMain executes the command tree and reports a failure on stderr.
func runMain(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return 0
	}
	outcome := classifyExit(err)
	if !outcome.silent {
		emitCommandError(outcome.cause, outcome.message, outcome.code, stderr)
	}
	return outcome.code
}

type exitOutcome struct {
	code    int
	message string
	cause   error
	silent  bool
}

func classifyExit(err error) exitOutcome {
	var ee *exitError
	if errors.As(err, &ee) {
		cause := err
		if ee.err != nil {
			cause = ee.err
		}
		return exitOutcome{code: ee.code, message: "command failed", cause: cause, silent: ee.silent}
	}
	if errors.Is(err, context.Canceled) {
		return exitOutcome{code: exitCodeCanceled, message: "command canceled", cause: err}
	}
	return exitOutcome{code: 1, message: "command failed", cause: err}
}

// emitCommandError logs err through a fresh structured logger, or prints it
// plainly for commands that talk to a terminal.
func emitCommandError(err error, message string, exitCode int, stderr io.Writer) {
	cmdCtx := currentCommandExecutionContext()
	if cmdCtx.UsesStructuredLog {
		cfg, cfgErr := logging.LoadConfigFromEnv()
		if cfgErr != nil {
			cfg = logging.DefaultConfig()
		}
		logging.NewLogger(cfg, stderr, cmdCtx.CommandPath).Error(message, "exit_code", exitCode, "error", err)
		return
	}
	if exitCode == exitCodeCanceled {
		fmt.Fprintln(stderr, "canceled")
		return
	}
	fmt.Fprintln(stderr, err)
}
