package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	app "github.com/campuskit/provisioner/internal/application/provisioning"
	"github.com/campuskit/provisioner/internal/bootstrap"
	"github.com/campuskit/provisioner/internal/config"
	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
	"github.com/campuskit/provisioner/internal/export"
	"github.com/campuskit/provisioner/internal/infrastructure/directory"
	infrafile "github.com/campuskit/provisioner/internal/infrastructure/file"
	"github.com/campuskit/provisioner/internal/infrastructure/notify"
	"github.com/campuskit/provisioner/internal/infrastructure/repository"
	"github.com/campuskit/provisioner/internal/infrastructure/webui"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("create pgx pool", zap.Error(err))
	}
	defer pool.Close()

	client := directory.NewClient(context.Background(), directory.ClientConfig{
		BaseURL:      cfg.Directory.BaseURL,
		TokenURL:     cfg.Directory.TokenURL,
		ClientID:     cfg.Directory.ClientID,
		ClientSecret: cfg.Directory.ClientSecret,
		Scopes:       cfg.Directory.Scopes,
	})

	directoryProvisioner := directory.NewProvisioner(client, directory.ProvisionerConfig{
		Groups: map[domain.Affiliation]string{
			domain.AffiliationStudent: cfg.Directory.StudentGroup,
			domain.AffiliationFaculty: cfg.Directory.FacultyGroup,
		},
		CredentialLength: cfg.Directory.CredentialLength,
		PropagationWait:  time.Duration(cfg.Directory.PropagationWaitSeconds) * time.Second,
	}, logger)

	mailer := notify.NewMailer(client, notify.Config{
		From:        cfg.Directory.SenderMailbox,
		Subject:     cfg.Mail.Subject,
		WebPassword: cfg.Web.DefaultPassword,
	}, logger)

	// the browser session is batch-scoped, so each claimed job gets a fresh
	// engine
	runnerFactory := func(ctx context.Context) (app.BatchRunner, error) {
		session, err := webui.NewBrowserSession(ctx, cfg.Web.Headless)
		if err != nil {
			return nil, err
		}
		webProvisioner := webui.NewProvisioner(session, webui.Config{
			LoginURL:               cfg.Web.LoginURL,
			FormURL:                cfg.Web.FormURL,
			Username:               cfg.Web.Username,
			Password:               cfg.Web.Password,
			SuccessURLPrefix:       cfg.Web.SuccessURLPrefix,
			DefaultAccountPassword: cfg.Web.DefaultPassword,
			DefaultBirthDate:       cfg.Web.DefaultBirthDate,
			ScreenshotDir:          cfg.Web.ScreenshotDir,
			SubmitWait:             time.Duration(cfg.Web.SubmitWaitMillis) * time.Millisecond,
		}, logger)

		return app.NewOrchestrator(directoryProvisioner, webProvisioner, mailer, app.OrchestratorConfig{
			DirectoryConcurrency: cfg.Batch.DirectoryConcurrency,
			BatchTimeout:         time.Duration(cfg.Batch.TimeoutMinutes) * time.Minute,
		}, logger), nil
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	worker := app.NewBatchWorker(
		repository.NewBatchJobRepository(db),
		infrafile.NewLocalSource(cfg.Batch.BaseDir),
		repository.NewOutcomeBulkRepository(pool),
		client,
		runnerFactory,
		[]export.Exporter{export.NewJSONExporter(cfg.Export.Dir, logger)},
		app.BatchWorkerConfig{
			PollInterval:        time.Duration(cfg.Batch.PollSeconds) * time.Second,
			LeaseDuration:       time.Duration(cfg.Batch.LeaseSeconds) * time.Second,
			InstitutionalDomain: cfg.Batch.InstitutionalDomain,
		},
		logger,
	)
	worker.Start(workerCtx)

	server := bootstrap.NewHTTPServer(db)

	go func() {
		if err := server.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("graceful shutdown failed", zap.Error(err))
	}
}
