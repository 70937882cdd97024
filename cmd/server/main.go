package main

import (
	"context"
	"fmt"

	"github.com/reliefhub/reliefhub/internal/audit"
	"github.com/reliefhub/reliefhub/internal/config"
	handlerhttp "github.com/reliefhub/reliefhub/internal/handler/http"
	"github.com/reliefhub/reliefhub/internal/importer"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/internal/server"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/internal/sync"
	"github.com/reliefhub/reliefhub/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("reliefhub-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *store.DB
	switch cfg.Database.Driver {
	case "sqlite3":
		db, err = store.NewConnectSQLite(ctx, cfg.Database, log)
	default:
		db, err = store.NewConnectPostgres(ctx, cfg.Database, log)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting database")
	}
	defer db.Close()

	if cfg.Migrate {
		if err = db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("error applying migrations")
		}
	}

	registry := schema.DefaultRegistry()
	rows := store.NewRowStore(db, log)
	recorder := audit.NewRecorder(db, cfg.Audit, log)
	factory := resource.NewFactory(registry, rows, recorder, log)
	ser := serializer.NewSerializer(registry, rows, cfg.Sync.RepositoryUUID, log)
	im := importer.NewImporter(registry, factory, rows, cfg.Sync.RepositoryUUID, log)
	users := store.NewUserStore(db, log)

	peers := sync.NewStore(db, log)
	engine := sync.NewEngine(peers, im, ser, rows, registry, recorder, cfg.Sync, log)
	scheduler := sync.NewScheduler(engine, peers, cfg.Sync, log)

	handler := handlerhttp.NewHandler(factory, ser, im, engine, users, cfg, log)

	srv, err := server.NewServer(handler, cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	background := workers.NewWorkers(
		workers.NewSchedulerWorker(ctx, scheduler, log),
	)
	background.Run()

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
