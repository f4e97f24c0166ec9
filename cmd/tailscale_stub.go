//go:build !tsnet

package cmd

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/chatclaw/internal/config"
)

// Stub when built without the tsnet tag.
func initTailscale(_ context.Context, cfg *config.Config, _ *http.ServeMux) func() {
	if cfg.Tailscale.Hostname != "" {
		slog.Warn("tailscale configured but this build lacks tsnet support; rebuild with -tags tsnet")
	}
	return nil
}
