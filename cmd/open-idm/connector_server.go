package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/open-sspm/open-idm/internal/config"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/connectors/remote"
	"github.com/open-sspm/open-idm/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var connectorServerBundles string

var connectorServerCmd = &cobra.Command{
	Use:   "connector-server",
	Short: "Host the built-in connector bundles for remote callers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnectorServer()
	},
}

var hashKeyStdin bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key",
	Short: "Print the argon2id hash to use as CONNECTOR_SERVER_KEY_HASH.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readConnectorKey(cmd)
		if err != nil {
			return err
		}
		hash, err := remote.HashKey(key)
		if err != nil {
			return err
		}
		cmd.Println(hash)
		return nil
	},
}

func init() {
	connectorServerCmd.Flags().StringVar(&connectorServerBundles, "bundles", "", "YAML file listing the bundles to host (default: all built-in bundles)")
	hashKeyCmd.Flags().BoolVar(&hashKeyStdin, "key-stdin", false, "read the key from stdin instead of prompting")
	connectorServerCmd.AddCommand(hashKeyCmd)
}

func runConnectorServer() error {
	cfg, err := config.LoadOptionalDB()
	if err != nil {
		return err
	}
	reg, err := hostedRegistry(connectorServerBundles)
	if err != nil {
		return err
	}
	host, err := remote.NewServer(reg, remote.ServerConfig{
		KeyHash:     cfg.ConnectorServer.KeyHash,
		SessionIdle: cfg.ConnectorServer.SessionIdle,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, metricsErrs := metrics.StartServer(ctx, cfg.MetricsAddr, nil)
	go host.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.ConnectorServer.Addr,
		Handler:           host.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	tls := cfg.ConnectorServer.TLSCertFile != ""
	if !tls {
		slog.Warn("connector server is not using TLS; guarded values cross the network in clear text")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("connector server listening", "addr", httpServer.Addr, "tls", tls, "bundles", len(reg.All()))
		if tls {
			errCh <- httpServer.ListenAndServeTLS(cfg.ConnectorServer.TLSCertFile, cfg.ConnectorServer.TLSKeyFile)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-metricsErrs:
		return err
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// hostedRegistry returns the built-in bundles, narrowed to the allow-list
// when path is set.
func hostedRegistry(path string) (*registry.ConnectorRegistry, error) {
	reg := registry.Builtin()
	if strings.TrimSpace(path) == "" {
		return reg, nil
	}
	allow, err := remote.LoadAllowList(path)
	if err != nil {
		return nil, err
	}
	return reg.Restrict(allow.Bundles)
}

func readConnectorKey(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if hashKeyStdin || !term.IsTerminal(fd) {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no key on stdin")
		}
		return scanner.Text(), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Key: ")
	key1, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Confirm key: ")
	key2, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	if string(key1) != string(key2) {
		return "", errors.New("keys do not match")
	}
	return string(key1), nil
}
