package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shardcache-go/shc/internal/cliutil"
	"github.com/shardcache-go/shc/pkg/transport"
	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/request"
)

// dial opens a connection to --server and builds the request.Config to use
// for it, resolving the shared secret from --secret-file, --secret, or an
// interactive prompt, in that order of preference.
func dial(ctx context.Context) (net.Conn, request.Config, error) {
	timeout := time.Duration(Flags.Timeout) * time.Second
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := transport.Dial(dialCtx, Flags.Server, wire.DefaultPort, timeout)
	if err != nil {
		return nil, request.Config{}, fmt.Errorf("failed to connect to %s: %w", Flags.Server, err)
	}

	sigMode, err := parseSigMode(Flags.SigMode)
	if err != nil {
		conn.Close()
		return nil, request.Config{}, err
	}

	secret, err := resolveSecret(sigMode)
	if err != nil {
		conn.Close()
		return nil, request.Config{}, err
	}

	return conn, request.Config{Secret: secret, SigMode: sigMode}, nil
}

func parseSigMode(s string) (wire.SigMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return wire.SigNone, nil
	case "whole":
		return wire.SigWhole, nil
	case "chunk":
		return wire.SigChunk, nil
	default:
		return wire.SigNone, fmt.Errorf("invalid --sig-mode %q (valid: none, whole, chunk)", s)
	}
}

func resolveSecret(sigMode wire.SigMode) ([]byte, error) {
	if Flags.SecretFile != "" {
		data, err := os.ReadFile(Flags.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read --secret-file: %w", err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}
	if Flags.Secret != "" {
		return []byte(Flags.Secret), nil
	}
	if sigMode == wire.SigNone {
		return nil, nil
	}
	secret, err := cliutil.PromptSecret("Shared secret")
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return []byte(secret), nil
}

func outputFormat() (cliutil.Format, error) {
	return cliutil.ParseFormat(Flags.Output)
}
