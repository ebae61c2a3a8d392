package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hyperengineering/stitchbook/internal/config"
	"github.com/hyperengineering/stitchbook/internal/connectivity"
	"github.com/hyperengineering/stitchbook/internal/domain"
	"github.com/hyperengineering/stitchbook/internal/localstore"
	"github.com/hyperengineering/stitchbook/internal/notify"
	"github.com/hyperengineering/stitchbook/internal/objstore"
	"github.com/hyperengineering/stitchbook/internal/queue"
	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/session"
	syncengine "github.com/hyperengineering/stitchbook/internal/sync"
)

// app is the composition root: every collaborator is built once here and
// injected downward.
type app struct {
	cfg     *config.Config
	store   *localstore.Store
	client  *remote.HTTPClient
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	session *session.Manager

	customers    *domain.Customers
	orders       *domain.Orders
	tasks        *domain.Tasks
	inventory    *domain.Inventory
	measurements *domain.Measurements
	media        *domain.Media
}

// buildApp wires the full object graph from configuration. A single
// reachability probe runs so one-shot commands know whether they are
// online before acting.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	kv, err := openKV(cfg.Database)
	if err != nil {
		return nil, err
	}
	store := localstore.New(kv)

	client := remote.NewHTTPClient(remote.Config{
		Endpoint:   cfg.Remote.Endpoint,
		ProjectID:  cfg.Remote.ProjectID,
		DatabaseID: cfg.Remote.DatabaseID,
		Timeout:    time.Duration(cfg.Remote.Timeout),
	})

	bucket, err := objstore.NewBucket(objstore.Config{
		Bucket:    cfg.Storage.Bucket,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		URLExpiry: time.Duration(cfg.Storage.URLExpiry),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	monitor := connectivity.NewMonitor(client, time.Duration(cfg.Sync.ProbeInterval))

	sess := session.NewManager(client, store)

	q := queue.New(store)
	engine := syncengine.New(store, q, client, monitor, notify.SlogNotifier{}, sess)
	engine.SetConflictRetryDelay(time.Duration(cfg.Sync.ConflictRetryDelay))

	monitor.OnOnline(func() { engine.OnReconnect(context.Background()) })
	monitor.OnOffline(engine.OnDisconnect)

	// Initial probe so subcommands start with a real state instead of
	// the pessimistic default.
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	monitor.SetOnline(client.Health(probeCtx) == nil)

	return &app{
		cfg:          cfg,
		store:        store,
		client:       client,
		monitor:      monitor,
		engine:       engine,
		session:      sess,
		customers:    domain.NewCustomers(engine),
		orders:       domain.NewOrders(engine),
		tasks:        domain.NewTasks(engine),
		inventory:    domain.NewInventory(engine),
		measurements: domain.NewMeasurements(engine),
		media:        domain.NewMedia(engine, bucket),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}

func openKV(cfg config.DatabaseConfig) (localstore.KV, error) {
	switch cfg.Backend {
	case "bolt":
		return localstore.NewBoltKV(cfg.Path)
	case "sqlite", "":
		return localstore.NewSQLiteKV(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}
