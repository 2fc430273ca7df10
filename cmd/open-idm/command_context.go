package main

import (
	"os"
	"strings"
	"sync"

	"github.com/open-sspm/open-idm/internal/logging"
	"github.com/spf13/cobra"
)

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandContextMu sync.RWMutex
	commandContext   commandExecutionContext
)

func setCommandExecutionContext(c commandExecutionContext) {
	commandContextMu.Lock()
	commandContext = c
	commandContextMu.Unlock()
}

func currentCommandExecutionContext() commandExecutionContext {
	commandContextMu.RLock()
	defer commandContextMu.RUnlock()
	return commandContext
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

// plainOutputCommands print for a terminal instead of logging.
var plainOutputCommands = map[string]bool{
	"open-idm connector-server hash-key": true,
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	if cmd == nil || cmd == rootCmd {
		return false
	}
	return !plainOutputCommands[cmd.CommandPath()]
}

// bootstrapCommandLogging installs the structured logger for commands that
// use one and records how failures of cmd are reported.
func bootstrapCommandLogging(cmd *cobra.Command, _ []string) error {
	path := strings.TrimSpace(cmd.CommandPath())
	structured := commandUsesStructuredLogging(cmd)
	setCommandExecutionContext(commandExecutionContext{CommandPath: path, UsesStructuredLog: structured})
	if !structured {
		return nil
	}
	_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: path, Writer: os.Stdout})
	return err
}
