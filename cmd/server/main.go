package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"arenadesk/internal/admin"
	adminhandler "arenadesk/internal/admin/handler"
	httpapi "arenadesk/internal/http"
	"arenadesk/internal/messaging"
	messaginghandler "arenadesk/internal/messaging/handler"
	messagingmetrics "arenadesk/internal/messaging/metrics"
	"arenadesk/internal/messaging/outbox"
	messagingstore "arenadesk/internal/messaging/store"
	"arenadesk/internal/platform/config"
	"arenadesk/internal/platform/httpserver"
	"arenadesk/internal/platform/logger"
	platformredis "arenadesk/internal/platform/redis"
	"arenadesk/internal/rpc"
	rpcmetrics "arenadesk/internal/rpc/metrics"
	"arenadesk/internal/rpc/transport"
)

const janitorInterval = 30 * time.Second

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		fatal(log, "postgres setup failed", err)
	}
	defer db.Close()

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "redis setup failed", err)
	}
	defer rdb.Close()

	// Outbound rpc: one channel per downstream, one shared registry.
	channels := transport.Map{}
	for _, service := range []transport.ServiceName{
		transport.ServiceIdentity,
		transport.ServiceAthlete,
		transport.ServiceInvestor,
	} {
		ch, err := transport.NewRedisChannel(ctx, rdb.Client, service, log)
		if err != nil {
			fatal(log, "rpc channel setup failed", err)
		}
		channels[service] = ch
	}
	defer channels.Close()

	registry := rpc.NewRegistry(log, 0)
	go func() {
		if err := registry.RunJanitor(ctx, janitorInterval); err != nil && ctx.Err() == nil {
			log.Error("correlation janitor stopped", slog.Any("err", err))
		}
	}()

	callMetrics := rpcmetrics.New()
	newClient := func(service transport.ServiceName) *rpc.Client {
		ch, err := channels.Get(service)
		if err != nil {
			fatal(log, "rpc client setup failed", err)
		}
		return rpc.NewClient(ch, registry, log,
			rpc.WithTimeout(cfg.RPCTimeout),
			rpc.WithMetrics(callMetrics))
	}

	adminService := admin.NewService(admin.Clients{
		Identity: newClient(transport.ServiceIdentity),
		Athlete:  newClient(transport.ServiceAthlete),
		Investor: newClient(transport.ServiceInvestor),
	}, log, admin.WithCache(admin.NewRedisCache(rdb.Client), 30*time.Second))

	broadcastMetrics := messagingmetrics.New()
	messagingOpts := []messaging.ServiceOption{messaging.WithMetrics(broadcastMetrics)}
	if cfg.FanoutCap > 0 {
		messagingOpts = append(messagingOpts, messaging.WithMaxRecipients(cfg.FanoutCap))
	}
	messagingService := messaging.NewService(messagingstore.NewPostgres(db), log, messagingOpts...)

	producer, err := outbox.NewKafkaProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		fatal(log, "kafka setup failed", err)
	}
	defer producer.Close()

	worker := outbox.NewWorker(outbox.NewPostgresStore(db), producer, log,
		outbox.WithMetrics(broadcastMetrics))
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("outbox worker stopped", slog.Any("err", err))
		}
	}()

	// Inbound rpc: the gateway reaches this service the same way this
	// service reaches its downstreams.
	responder := transport.NewResponder(rdb.Client, "admin", log)
	adminhandler.New(adminService, log).Register(responder)
	messaginghandler.New(messagingService, log).Register(responder)
	go func() {
		if err := responder.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("rpc responder stopped", slog.Any("err", err))
		}
	}()

	router := httpapi.NewRouter(map[string]httpapi.HealthChecker{
		"postgres": httpapi.HealthCheckFunc(db.PingContext),
		"redis":    rdb,
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting arenadesk", slog.String("addr", cfg.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

// openPostgres connects and applies the messaging schema, which is
// idempotent.
func openPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, messagingstore.Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("err", err))
	os.Exit(1)
}
