// Package app wires the catalog resources to the configured store and the HTTP transport.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/binaryburst/entitykit/adapter/boltdb"
	"github.com/binaryburst/entitykit/adapter/httpapi"
	"github.com/binaryburst/entitykit/adapter/memory"
	"github.com/binaryburst/entitykit/adapter/mongodb"
	"github.com/binaryburst/entitykit/adapter/mysql"
	"github.com/binaryburst/entitykit/adapter/postgresql"
	"github.com/binaryburst/entitykit/internal/catalog"
	"github.com/binaryburst/entitykit/internal/config"
	"github.com/binaryburst/entitykit/pkg/controller"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logging"
	"go.llib.dev/frameless/pkg/tasker"
)

// OpenStore connects to the store selected by the configuration.
func OpenStore(ctx context.Context, cfg config.Store) (catalog.Store, error) {
	switch cfg.Kind {
	case config.StoreMemory, "":
		return catalog.MemoryStore(memory.NewMemory()), nil

	case config.StorePostgreSQL:
		conn, err := postgresql.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return catalog.Store{}, err
		}
		return catalog.PostgresStore(conn), nil

	case config.StoreMySQL:
		conn, err := mysql.Connect(cfg.MySQLDSN)
		if err != nil {
			return catalog.Store{}, err
		}
		return catalog.MySQLStore(conn), nil

	case config.StoreBolt:
		db, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return catalog.Store{}, err
		}
		return catalog.BoltStore(db), nil

	case config.StoreMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
		if err != nil {
			return catalog.Store{}, err
		}
		return catalog.MongoStore(client), nil

	default:
		return catalog.Store{}, fmt.Errorf("unknown store: %q", cfg.Kind)
	}
}

// NewHandler mounts the catalog resources under /products and /tags.
func NewHandler(store catalog.Store, l *logging.Logger, reg *prometheus.Registry) *gin.Engine {
	services := catalog.NewServices(store, l)
	router := httpapi.NewRouter(httpapi.Options{
		Logger:   l,
		Registry: reg,
		Ready:    store.Ping,
	})
	httpapi.Mount(router, "/products", httpapi.Resource[int64, catalog.Product, catalog.ProductRecord, catalog.ProductInput, catalog.ProductOutput]{
		Controller: controller.New(services.Products, func(p *catalog.Product, id int64) { p.ID = id }, l),
		ParseID:    catalog.ParseProductID,
		Logger:     l,
	})
	httpapi.Mount(router, "/tags", httpapi.Resource[uuid.UUID, catalog.Tag, catalog.TagRecord, catalog.TagDTO, catalog.TagDTO]{
		Controller: controller.New(services.Tags, func(t *catalog.Tag, id uuid.UUID) { t.ID = id }, l),
		ParseID:    catalog.ParseTagID,
		Logger:     l,
	})
	return router
}

// Migrate prepares the schema of the configured store.
func Migrate(ctx context.Context, cfg config.Config) (rErr error) {
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer errorkit.Finish(&rErr, store.Close)
	return store.Migrate(ctx)
}

// Serve runs the HTTP server until ctx is cancelled or a shutdown signal arrives.
//
// The memory and bolt stores live inside the process, their schema is prepared on start.
// Database stores are expected to be migrated ahead with Migrate.
func Serve(ctx context.Context, cfg config.Config) (rErr error) {
	l := cfg.Logger()
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer errorkit.Finish(&rErr, store.Close)

	switch cfg.Store.Kind {
	case config.StoreMemory, config.StoreBolt:
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewHandler(store, l, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	l.Info(ctx, "starting http server",
		logging.Field("addr", srv.Addr),
		logging.Field("store", cfg.Store.Kind))
	return tasker.Main(ctx, tasker.HTTPServerTask(srv))
}
