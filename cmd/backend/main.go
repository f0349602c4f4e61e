package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blueragesoftware/backend/internal/config"
	"github.com/blueragesoftware/backend/internal/contacts"
	internal_http "github.com/blueragesoftware/backend/internal/http"
	"github.com/blueragesoftware/backend/internal/log"
	internal_storage "github.com/blueragesoftware/backend/internal/storage"
	"github.com/blueragesoftware/backend/pkg/engine"
	"github.com/blueragesoftware/backend/pkg/integration"
	"github.com/blueragesoftware/backend/pkg/models"
	"github.com/blueragesoftware/backend/pkg/pool"
	"github.com/blueragesoftware/backend/pkg/service"
	"github.com/blueragesoftware/backend/pkg/vault"
)

const agentsPoolParallelism = 10

var rootCmd = &cobra.Command{Use: "backend"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent execution backend",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.GetLogger()

		cfg, err := config.Load()
		if err != nil {
			logger.Errorf("Invalid configuration: %v", err)
			os.Exit(1)
		}

		store, err := internal_storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logger.Errorf("Failed to initialize store: %v", err)
			os.Exit(1)
		}
		defer store.Close()

		credentialVault, err := vault.New(cfg.EncryptionKey)
		if err != nil {
			logger.Errorf("Failed to initialize vault: %v", err)
			os.Exit(1)
		}

		platformClient, err := integration.NewHTTPClient(cfg.ComposioBaseURL, cfg.ComposioAPIKey)
		if err != nil {
			logger.Errorf("Failed to initialize integration client: %v", err)
			os.Exit(1)
		}
		authorizer := integration.NewAuthorizer(platformClient, cfg.SupportedToolkits)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		agentsPool := pool.New[models.ExecutionTask](ctx, pool.Config{
			Name:           "agents",
			MaxParallelism: agentsPoolParallelism,
		}, nil, logger)

		tasks := service.NewTaskService(store, agentsPool, cfg.DefaultModelID, logger)
		runner := service.NewRunner(
			tasks,
			authorizer,
			service.NewModelResolver(credentialVault),
			engine.NewHTTPEngine(cfg.EngineBaseURL, cfg.EngineAPIKey),
			logger,
		)
		agentsPool.SetHandler(runner.Run)
		agentsPool.Start()
		defer agentsPool.Stop()

		var syncer *contacts.Syncer
		if cfg.ResendAPIKey != "" && cfg.ResendAudienceID != "" {
			syncer = contacts.NewSyncer(ctx,
				contacts.NewHTTPClient(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.ResendAudienceID),
				logger)
			syncer.Start()
			defer syncer.Stop()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- internal_http.StartServer(cfg.Port, tasks)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			logger.Errorf("Server stopped: %v", err)
			os.Exit(1)
		case sig := <-sigCh:
			logger.Infof("Received %s, shutting down", sig)
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
