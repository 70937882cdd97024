package http

import (
	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/importer"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/internal/store"
	syncer "github.com/reliefhub/reliefhub/internal/sync"
)

// Handler carries the wired application layers the routes dispatch into.
type Handler struct {
	factory    *resource.Factory
	serializer *serializer.Serializer
	importer   *importer.Importer
	engine     *syncer.Engine
	users      *store.UserStore
	cfg        *config.StructuredConfig

	logger *logger.Logger
}

func NewHandler(factory *resource.Factory, ser *serializer.Serializer, im *importer.Importer,
	engine *syncer.Engine, users *store.UserStore, cfg *config.StructuredConfig, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		factory:    factory,
		serializer: ser,
		importer:   im,
		engine:     engine,
		users:      users,
		cfg:        cfg,
		logger:     logger,
	}
}
