package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trainsync/internal/auth"
	"trainsync/internal/coachsequence"
	"trainsync/internal/config"
	"trainsync/internal/hafas"
	"trainsync/internal/observability/metrics"
	railapp "trainsync/internal/railway/application"
	"trainsync/internal/railway/infrastructure/rest"
	syncapp "trainsync/internal/sync/application"
	"trainsync/internal/sync/notify"
	"trainsync/internal/sync/report"
	"trainsync/internal/timetable"
	"trainsync/internal/transport"
	cachemem "trainsync/internal/transport/infrastructure/memory"
	cachepg "trainsync/internal/transport/infrastructure/postgres"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	logger.Printf("the service was started with the following configuration")
	for _, setting := range cfg.Redacted() {
		logger.Printf("%s : %s", setting.Key, setting.Value)
	}
	var debug *log.Logger
	if cfg.Debug {
		debug = log.New(os.Stdout, "DEBUG ", log.LstdFlags)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	var cacheStore transport.CacheStore
	switch cfg.CacheBackend {
	case "postgres":
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		pgStore := cachepg.NewCacheStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatalf("cache schema error: %v", err)
		}
		go pruneCache(ctx, pgStore, cfg.CacheTTL, logger)
		cacheStore = pgStore
	default:
		cacheStore = cachemem.NewCacheStore(cachemem.WithSize(cfg.CacheSize))
	}
	metrics.Init(db, logger)

	hafasDoer, err := externalDoer("hafas", cfg, cfg.RateLimit, cacheStore, logger, debug)
	if err != nil {
		logger.Fatalf("hafas transport error: %v", err)
	}
	coachDoer, err := externalDoer("coachsequence", cfg, cfg.RateLimit, cacheStore, logger, debug)
	if err != nil {
		logger.Fatalf("coach sequence transport error: %v", err)
	}
	storeDoer, err := internalDoer(cfg, debug)
	if err != nil {
		logger.Fatalf("internal transport error: %v", err)
	}

	hafasClient, err := hafas.NewClient(hafasDoer, cfg.HafasBaseURL, boardQuery(cfg.Query), hafas.WithLogger(logger))
	if err != nil {
		logger.Fatalf("hafas client error: %v", err)
	}
	coachClient, err := coachsequence.NewClient(coachDoer, cfg.CoachSequenceBaseURL)
	if err != nil {
		logger.Fatalf("coach sequence client error: %v", err)
	}
	creds, err := credentials(cfg)
	if err != nil {
		logger.Fatalf("credentials error: %v", err)
	}
	store, err := rest.NewStore(storeDoer, cfg.InternalBaseURL, rest.WithCredentials(creds), rest.WithLogger(logger))
	if err != nil {
		logger.Fatalf("store error: %v", err)
	}

	aggregator, err := timetable.NewAggregator(hafasClient, logger)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}
	reconciler, err := railapp.NewReconciler(store,
		railapp.WithCompositionSource(coachClient),
		railapp.WithLocation(cfg.Location()),
		railapp.WithStopoverUpdates(cfg.UpdateStopovers),
		railapp.WithStationCoordinateUpdates(cfg.UpdateStationCoordinates),
		railapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}

	orchestratorOpts := []syncapp.Option{syncapp.WithLogger(logger)}
	if cfg.ReportDir != "" {
		writer, err := report.NewWriter(cfg.ReportDir, logger)
		if err != nil {
			logger.Fatalf("report writer error: %v", err)
		}
		orchestratorOpts = append(orchestratorOpts, syncapp.WithReportSink(writer))
	}
	if cfg.NotifyWebhookURL != "" {
		orchestratorOpts = append(orchestratorOpts, syncapp.WithNotifier(notify.NewWebhookNotifier(cfg.NotifyWebhookURL)))
	}
	orchestrator, err := syncapp.NewOrchestrator(store, aggregator, hafasClient, reconciler, cfg.StationUsage, orchestratorOpts...)
	if err != nil {
		logger.Fatalf("orchestrator error: %v", err)
	}
	scheduler, err := syncapp.NewScheduler(orchestrator, cfg.SyncInterval, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if last, ok := scheduler.LastSuccess(); ok {
			_, _ = w.Write([]byte("ok last_success=" + last.Format(time.RFC3339)))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server error: %v", err)
		}
	}()

	scheduler.Start(ctx)

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

// externalDoer stacks cache over rate limit over HTTP, so cache hits spend
// no tokens. Each service gets its own limiter and cache namespace.
func externalDoer(service string, cfg config.Config, perMinute int, store transport.CacheStore, logger, debug *log.Logger) (transport.Doer, error) {
	client, err := transport.NewClient(service,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithDebugLogger(debug),
	)
	if err != nil {
		return nil, err
	}
	limited, err := transport.NewRateLimited(client, perMinute, transport.WithLimitService(service))
	if err != nil {
		return nil, err
	}
	return transport.NewCached(limited, store, service, cfg.CacheTTL, transport.WithCacheLogger(logger), transport.WithCacheDebugLogger(debug))
}

// internalDoer is never cached: existence lookups must see fresh state.
func internalDoer(cfg config.Config, debug *log.Logger) (transport.Doer, error) {
	client, err := transport.NewClient("internal",
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithDebugLogger(debug),
	)
	if err != nil {
		return nil, err
	}
	return transport.NewRateLimited(client, cfg.InternalRateLimit, transport.WithLimitService("internal"))
}

func credentials(cfg config.Config) (auth.Credentials, error) {
	switch {
	case cfg.InternalJWTSecret != "":
		subject := cfg.InternalUsername
		if subject == "" {
			subject = "trainsync"
		}
		return auth.NewServiceToken([]byte(cfg.InternalJWTSecret), subject, time.Hour)
	case cfg.InternalUsername != "":
		return auth.Basic{Username: cfg.InternalUsername, Password: cfg.InternalPassword}, nil
	}
	return nil, errors.New("no backing store credentials configured")
}

func boardQuery(q config.Query) hafas.BoardQuery {
	return hafas.BoardQuery{
		When:            q.When,
		Duration:        q.Duration,
		Language:        q.Language,
		Bus:             q.Bus,
		Ferry:           q.Ferry,
		Subway:          q.Subway,
		Tram:            q.Tram,
		Taxi:            q.Taxi,
		Suburban:        q.Suburban,
		Regional:        q.Regional,
		RegionalExp:     q.RegionalExp,
		National:        q.National,
		NationalExpress: q.NationalExpress,
		Stopovers:       q.Stopovers,
		Pretty:          q.Pretty,
		Remarks:         q.Remarks,
		Polyline:        q.Polyline,
	}
}

func pruneCache(ctx context.Context, store *cachepg.CacheStore, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Printf("cache prune error: %v", err)
				continue
			}
			logger.Printf("cache prune: removed %d expired entries", n)
		}
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
