package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/ai"
	"github.com/docvault/docvault/internal/config"
	"github.com/docvault/docvault/internal/db"
	"github.com/docvault/docvault/internal/embedcache"
	"github.com/docvault/docvault/internal/events"
	"github.com/docvault/docvault/internal/filestore"
	"github.com/docvault/docvault/internal/handler"
	"github.com/docvault/docvault/internal/ingest"
	"github.com/docvault/docvault/internal/job"
	"github.com/docvault/docvault/internal/middleware"
	"github.com/docvault/docvault/internal/repo"
	"github.com/docvault/docvault/internal/schedule"
	"github.com/docvault/docvault/internal/service"
	"github.com/docvault/docvault/internal/state"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docvault",
		Short: "docvault document server and upload client",
	}
	rootCmd.AddCommand(runCommand(), uploadCommand())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run docvault server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	return cmd
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Bool("ai_enabled", cfg.AI.Enabled),
	)

	userRepo := repo.NewUserRepo(conn)
	folderRepo := repo.NewFolderRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	sessionRepo := repo.NewUploadSessionRepo(conn)
	embeddingRepo := repo.NewEmbeddingRepo(conn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	var embedder ai.IEmbedder
	if cfg.AI.Enabled {
		embedder = embedcache.Wrap(
			ai.NewGeminiEmbedder(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Dimension),
			cfg.AI.CacheSize,
		)
	}

	hub := events.NewHub()

	folderService := service.NewFolderService(folderRepo, docRepo)
	authService := service.NewAuthService(userRepo, folderService, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	documentService := service.NewDocumentService(docRepo, folderRepo, embeddingRepo, store)
	uploadService := service.NewUploadService(documentService, folderService, docRepo, sessionRepo, store, time.Minute*time.Duration(cfg.PresignTTLMins))
	processingService := service.NewProcessingService(docRepo, embeddingRepo, embedder, hub, 16)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService),
		Folders:   handler.NewFolderHandler(folderService),
		Uploads:   handler.NewUploadHandler(uploadService, cfg.UploadMaxBytes),
		Events:    handler.NewWSHandler(hub),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingJob(processingService), cfg.EmbeddingCron); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewUploadCleanupJob(uploadService), cfg.UploadCleanCron); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func uploadCommand() *cobra.Command {
	var (
		server     string
		token      string
		email      string
		password   string
		category   string
		passphrase string
		presigned  bool
		workers    int
		noEvents   bool
	)
	cmd := &cobra.Command{
		Use:   "upload [paths...]",
		Short: "upload files or folders to a docvault server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init("", "info", 0, 0, 0, true)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := ingest.NewClient(server, token)
			if token == "" {
				if email == "" || password == "" {
					return fmt.Errorf("either --token or --email/--password is required")
				}
				issued, err := client.Login(ctx, email, password)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				token = issued
			}

			items, err := ingest.Collect(args, category)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("nothing to upload after filtering hidden files")
			}

			opts := []ingest.Option{
				ingest.WithConcurrency(workers),
				ingest.WithNotify(printProgress),
			}
			if passphrase != "" {
				opts = append(opts, ingest.WithCipherbox(ingest.NewCipherbox(passphrase)))
			}
			if presigned {
				opts = append(opts, ingest.WithPresigned())
			}
			if !noEvents {
				bridge, err := ingest.DialBridge(ctx, server, token)
				if err != nil {
					logutil.GetLogger(ctx).Warn("events socket unavailable, falling back to polling", zap.Error(err))
				} else {
					defer bridge.Close()
					opts = append(opts, ingest.WithBridge(bridge))
				}
			}

			pipeline := ingest.NewPipeline(client, opts...)
			pipeline.Enqueue(items...)
			if err := pipeline.Run(ctx); err != nil {
				return err
			}

			failed := 0
			for _, snap := range pipeline.Snapshots() {
				if snap.Status == ingest.StatusFailed {
					failed++
					fmt.Fprintf(os.Stderr, "failed: %s: %v\n", snap.Name, snap.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d items failed", failed, len(items))
			}
			fmt.Printf("uploaded %d items\n", len(items))
			printCategorySummary(ctx, client)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8080", "server base url")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&email, "email", "", "login email, used when no token is given")
	cmd.Flags().StringVar(&password, "password", "", "login password, used when no token is given")
	cmd.Flags().StringVar(&category, "category", "", "target category, defaults to Recently Added")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "enable client-side encryption with this passphrase")
	cmd.Flags().BoolVar(&presigned, "presigned", false, "prefer direct-to-storage presigned uploads")
	cmd.Flags().IntVar(&workers, "workers", ingest.DefaultConcurrency, "max items in flight")
	cmd.Flags().BoolVar(&noEvents, "no-events", false, "skip the websocket subscription and poll instead")
	return cmd
}

// printCategorySummary refreshes the local document/folder view through
// the state store and prints where everything landed. Failures only cost
// the summary; the uploads themselves already finished.
func printCategorySummary(ctx context.Context, client *ingest.Client) {
	docs, err := client.ListDocuments(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("list documents failed", zap.Error(err))
		return
	}
	folders, err := client.ListFolders(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("list folders failed", zap.Error(err))
		return
	}
	store := state.NewStore(client)
	store.Load(docs, folders)
	for _, cat := range store.Categories() {
		fmt.Printf("  %s: %d files\n", cat.Name, cat.FileCount)
	}
}

func printProgress(snap ingest.Snapshot) {
	switch snap.Status {
	case ingest.StatusCompleted:
		fmt.Printf("done   %s\n", snap.Name)
	case ingest.StatusFailed:
		fmt.Printf("failed %s: %v\n", snap.Name, snap.Err)
	default:
		if snap.Notice != "" {
			fmt.Printf("%-6s %s %3d%% (%s)\n", snap.Status, snap.Name, snap.Progress, snap.Notice)
			return
		}
		fmt.Printf("%-6s %s %3d%%\n", snap.Status, snap.Name, snap.Progress)
	}
}
