package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/config"
	"github.com/mamadbah2/inventaire/internal/repository"
	"github.com/mamadbah2/inventaire/internal/repository/mongodb"
	"github.com/mamadbah2/inventaire/internal/repository/sheets"
	"github.com/mamadbah2/inventaire/internal/repository/spreadsheet"
	"github.com/mamadbah2/inventaire/internal/repository/sqlstore"
	"github.com/mamadbah2/inventaire/internal/service/articles"
	"github.com/mamadbah2/inventaire/internal/service/importer"
	"github.com/mamadbah2/inventaire/internal/service/qrcode"
	"github.com/mamadbah2/inventaire/pkg/clients/download"
	"github.com/mamadbah2/inventaire/pkg/logger"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    repository.Store
	articles *articles.Service
	importer *importer.Service
}

func newApp(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger, stdout, stderr io.Writer) (*app, error) {
	store, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	generator := qrcode.NewGenerator(cfg.Media.Root, qrcode.DetailURL(cfg.App.BaseURL), logger.Named(baseLogger, "svc.qrcode"))
	articleSvc := articles.NewService(store, generator, cfg.App.BaseURL, logger.Named(baseLogger, "svc.articles"))

	loaderOpts := []spreadsheet.LoaderOption{
		spreadsheet.WithDownloader(download.NewClient(cfg.Download), func(err error) bool {
			return errors.Is(err, download.ErrNotFound)
		}),
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("init sheets repository: %w", err)
		}
		loaderOpts = append(loaderOpts, spreadsheet.WithSheets(sheetsRepo))
	} else {
		baseLogger.Debug("google sheets credentials missing, sheets sources disabled")
	}
	loader := spreadsheet.NewLoader(logger.Named(baseLogger, "repo.spreadsheet"), loaderOpts...)

	importSvc := importer.NewService(loader, articleSvc, importer.NewReporter(stdout, stderr), logger.Named(baseLogger, "svc.importer"))

	return &app{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		articles: articleSvc,
		importer: importSvc,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (repository.Store, error) {
	if cfg.Database.Driver == config.DriverMongoDB {
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named(baseLogger, "repo.mongodb"))
		if err != nil {
			return nil, fmt.Errorf("init mongodb repository: %w", err)
		}
		return repo, nil
	}

	db, err := sqlstore.Open(cfg.Database, logger.Named(baseLogger, "repo.sql"))
	if err != nil {
		return nil, fmt.Errorf("init sql repository: %w", err)
	}
	return sqlstore.New(db, logger.Named(baseLogger, "repo.sql")), nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		a.logger.Error("failed to close article store", zap.Error(err))
	}
}
