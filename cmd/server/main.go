// cmd/server/main.go
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/techopsonedev/onedev/internal/analyzer"
	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/gitlab"
	"github.com/techopsonedev/onedev/internal/logging"
	"github.com/techopsonedev/onedev/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLog()

	a, ready := analyzer.NewFromConfig(context.Background(), cfg)

	newGitLab := func(token string) (server.GitLab, error) {
		c, err := gitlab.NewClient(token, &cfg.GitLab)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	srv := server.New(cfg, newGitLab, a,
		server.WithVersion(version),
		server.WithComponentStatus(status(ready.Store), status(ready.Inference)),
	)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port, "group", cfg.GitLab.GroupPath)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func status(ok bool) string {
	if ok {
		return server.StatusConnected
	}
	return server.StatusDemo
}
