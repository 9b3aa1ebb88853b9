package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"automedic-booking/internal/api"
	"automedic-booking/internal/cache"
	"automedic-booking/internal/config"
	"automedic-booking/internal/events"
	"automedic-booking/internal/feed"
	gweb "automedic-booking/internal/grpcweb"
	"automedic-booking/internal/handler"
	"automedic-booking/internal/httpapi"
	"automedic-booking/internal/logger"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/obs"
	"automedic-booking/internal/orders"
	"automedic-booking/internal/payment"
	"automedic-booking/internal/scheduler"
	"automedic-booking/internal/store"
)

const serviceName = "automedic-booking"

// backend is what both store implementations provide.
type backend interface {
	scheduler.AvailabilityStore
	feed.Source
	payment.IntentStore
	payment.Deduper
	orders.Store
	httpapi.Pinger
	PurgeEvents(ctx context.Context, ttl time.Duration) (int64, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		log.Fatal("tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// database
	var st backend
	if strings.HasPrefix(cfg.DatabaseURL, "memory://") {
		log.Warn("using in-memory store, data is lost on exit")
		st = store.NewMemory()
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal("db ping", zap.Error(err))
		}
		log.Info("connected to postgres")

		pg := store.New(pool)
		// run migrations
		if err := pg.Migrate(ctx, "db/migrations/001_init.sql"); err != nil {
			log.Warn("migration", zap.Error(err))
		} else {
			log.Info("migration applied")
		}
		st = pg
	}

	// event sink
	var pub events.Publisher = events.LogPublisher{Log: log}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			log.Fatal("nats", zap.Error(err))
		}
		pub = np
		log.Info("connected to nats")
	}
	defer pub.Close()

	// processed webhook ids
	var dedup payment.Deduper = st
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		dedup = cache.NewDeduper(rdb, cfg.DedupTTL)
		log.Info("connected to redis")
	} else {
		go purgeEvents(ctx, st, cfg.DedupTTL, log)
	}

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, payment intents cannot be created")
	}
	stripe := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	sched := scheduler.New(st, pub, log, scheduler.Options{
		Day:      cfg.Day(),
		Location: cfg.Location(),
		Timeout:  cfg.StoreTimeout,
	})
	fd := feed.New(sched, log)
	go fd.Run(ctx, st)

	recon := orders.New(st, log, cfg.StoreTimeout).WithCurrency(cfg.Currency)
	coord := payment.New(stripe, stripe, st, dedup, recon, pub, log, payment.Options{
		Currency: cfg.Currency,
		Timeout:  cfg.StoreTimeout,
	})
	h := handler.New(sched, fd, coord, recon)

	// grpc server
	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rl.Run(ctx)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(api.Codec{}),
		// starts a span per call so interceptors log its trace id
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.Logging(log),
			middleware.RateLimit(rl),
			middleware.Auth(cfg.JWTSecret),
		),
		grpc.ChainStreamInterceptor(
			middleware.LoggingStream(log),
			middleware.AuthStream(cfg.JWTSecret),
		),
	)
	api.RegisterBookingServiceServer(srv, h)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	// start grpc on TCP
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	go func() {
		log.Info("grpc listening", zap.String("port", cfg.Port))
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc", zap.Error(err))
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.Port, log,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	if err != nil {
		log.Fatal("bridge", zap.Error(err))
	}
	defer bridge.Close()

	httpSrv := &http.Server{
		Addr: ":" + cfg.WebPort,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Payments:  coord,
			Health:    st,
			GRPCWeb:   bridge.Handler(),
			Limiter:   rl,
			JWTSecret: cfg.JWTSecret,
			Log:       log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", zap.String("port", cfg.WebPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")
	healthSrv.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	// open WatchAvailability streams would hold GracefulStop forever
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
		srv.Stop()
	}
}

// purgeEvents drops old processed webhook ids hourly when they live in the
// database rather than in Redis.
func purgeEvents(ctx context.Context, st backend, ttl time.Duration, log *zap.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := st.PurgeEvents(ctx, ttl)
			if err != nil {
				log.Warn("purge webhook events", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged webhook events", zap.Int64("count", n))
			}
		}
	}
}
