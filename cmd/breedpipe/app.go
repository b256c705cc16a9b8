package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/giobale/dog-breed-explorer/backend/ingestion"
	"github.com/giobale/dog-breed-explorer/backend/notify"
	"github.com/giobale/dog-breed-explorer/backend/orchestration"
	"github.com/giobale/dog-breed-explorer/backend/processing"
	"github.com/giobale/dog-breed-explorer/internal/config"
	"github.com/giobale/dog-breed-explorer/internal/database"
	"github.com/giobale/dog-breed-explorer/internal/landing"
	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	warehouse *warehouse.Warehouse
	ledger    *gorm.DB
	runs      *database.RunStore
	project   *processing.Project
	pipeline  *orchestration.Service
	nc        *nats.Conn
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	log.Info("Initializing pipeline",
		zap.String("project_id", cfg.ProjectID),
		zap.String("api_url", cfg.FullAPIURL()),
		zap.String("warehouse", cfg.Warehouse.Driver),
		zap.String("raw_table", cfg.Warehouse.RawDataset+"."+cfg.Warehouse.RawTable),
		zap.String("model_dataset", cfg.Warehouse.ModelDataset))

	var err error
	a.warehouse, err = warehouse.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN, cfg.Warehouse.RawDataset, cfg.Warehouse.RawTable)
	if err != nil {
		return nil, err
	}

	a.ledger, err = database.Connect(cfg.Ledger, log)
	if err != nil {
		return nil, err
	}
	a.runs = database.NewRunStore(a.ledger)

	archive, err := landing.Open(ctx, cfg.Landing)
	if err != nil {
		return nil, fmt.Errorf("failed to open landing store: %w", err)
	}
	if archive != nil {
		log.Info("Raw payload archiving enabled", zap.String("driver", string(archive.Driver())))
	}

	client := ingestion.NewHTTPBreedClient(cfg.API.BaseURL, cfg.API.Endpoint, cfg.API.APIKey, cfg.API.PageSize, cfg.API.Timeout)
	extractor := ingestion.NewIngestionService(client, a.warehouse, archive,
		cfg.Warehouse.RawDataset, cfg.Warehouse.RawTable, log.Named("ingestion"))

	a.project, err = processing.DefaultProject()
	if err != nil {
		return nil, err
	}
	runner := processing.NewRunner(a.project, a.warehouse, cfg.Warehouse.ModelDataset, log.Named("processing"))

	notifiers, err := a.notifiers(cfg.Notify, log.Named("notify"))
	if err != nil {
		return nil, err
	}

	a.pipeline = orchestration.NewService(extractor, runner, a.runs, notifiers, log.Named("orchestration"))
	ok = true
	return a, nil
}

func (a *app) notifiers(cfg config.NotifyConfig, log *zap.Logger) (notify.Multi, error) {
	var notifiers notify.Multi
	if cfg.NATSURL != "" {
		nc, js, err := notify.Connect(cfg.NATSURL, log)
		if err != nil {
			return nil, err
		}
		a.nc = nc
		n := notify.NewNATSNotifier(js, cfg.SubjectPrefix, log)
		if err := n.EnsureStream(); err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.WebhookURL != "" {
		w, err := notify.NewWebhookNotifier(cfg.WebhookURL, "", cfg.WebhookFailuresOnly, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, w)
	}
	if cfg.EmailTo != "" {
		e, err := notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}, cfg.EmailFailuresOnly, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, e)
	}
	return notifiers, nil
}

// Close releases every resource the app opened.
func (a *app) Close() error {
	var errs []error
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain NATS connection: %w", err))
		}
	}
	if a.ledger != nil {
		if sqlDB, err := a.ledger.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if a.warehouse != nil {
		errs = append(errs, a.warehouse.Close())
	}
	return errors.Join(errs...)
}
