package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	alertapp "safewatch-cloud/internal/alerts/application"
	alertrepo "safewatch-cloud/internal/alerts/infrastructure/postgres"
	alerthttp "safewatch-cloud/internal/alerts/interfaces/http"
	"safewatch-cloud/internal/audit"
	"safewatch-cloud/internal/auth"
	"safewatch-cloud/internal/devices"
	"safewatch-cloud/internal/evidence"
	"safewatch-cloud/internal/notify"
	"safewatch-cloud/internal/observability/metrics"
	"safewatch-cloud/internal/realtime"
	reportapp "safewatch-cloud/internal/reports/application"
	reportrepo "safewatch-cloud/internal/reports/infrastructure/postgres"
	reporthttp "safewatch-cloud/internal/reports/interfaces/http"
	"safewatch-cloud/internal/session"
	sessionhttp "safewatch-cloud/internal/session/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	sessionCfg, err := session.LoadConfig()
	if err != nil {
		logger.Fatalf("session config error: %v", err)
	}

	// Evidence storage: MinIO when configured, local disk otherwise.
	var store evidence.Store
	if cfg.MinioEndpoint != "" {
		minioStore, err := evidence.NewMinioStore(evidence.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatalf("minio store error: %v", err)
		}
		store = minioStore
	} else {
		localStore, err := evidence.NewLocalStore(cfg.EvidenceDir)
		if err != nil {
			logger.Fatalf("local store error: %v", err)
		}
		store = localStore
	}
	uploader, err := evidence.NewUploader(store)
	if err != nil {
		logger.Fatalf("uploader error: %v", err)
	}

	deviceRegistry := devices.NewRegistry(db)
	alertRepo := alertrepo.NewAlertRepository(db)

	broker := alerthttp.NewSSEBroker()
	alertNotifiers := []alertapp.AlertNotifier{}

	// With redis the dashboard fanout rides pub/sub through the bridge so
	// multiple instances stay in sync; without it the broker is fed directly.
	var redisChannel *realtime.RedisChannel
	if cfg.RedisAddr != "" {
		redisChannel, err = realtime.NewRedisChannel(realtime.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			logger.Fatalf("redis channel error: %v", err)
		}
		defer redisChannel.Close()
		alertNotifiers = append(alertNotifiers, realtime.NewPublisher(redisChannel, logger))
	} else {
		alertNotifiers = append(alertNotifiers, broker)
	}

	if cfg.PushGatewayURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.PushGatewayURL)
		if err != nil {
			logger.Fatalf("push channel error: %v", err)
		}
		tpl, err := notify.NewTemplate(cfg.PushTemplate)
		if err != nil {
			logger.Fatalf("push template error: %v", err)
		}
		pushNotifier, err := notify.NewPushNotifier(deviceRegistry, channel, tpl,
			notify.WithRequestTimeout(cfg.PushTimeout),
			notify.WithDedupeWindow(cfg.PushDedupeWindow),
			notify.WithLogger(logger),
		)
		if err != nil {
			logger.Fatalf("push notifier error: %v", err)
		}
		defer pushNotifier.Close()
		alertNotifiers = append(alertNotifiers, pushNotifier)
	}

	alertService, err := alertapp.NewService(alertRepo, alertapp.WithNotifier(notify.NewMultiNotifier(alertNotifiers...)))
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	if redisChannel != nil {
		bridge, err := realtime.NewBridge(redisChannel, alertService, logger, broker)
		if err != nil {
			logger.Fatalf("realtime bridge error: %v", err)
		}
		go func() {
			if err := bridge.Run(context.Background()); err != nil && err != context.Canceled {
				logger.Printf("realtime bridge stopped: %v", err)
			}
		}()
	}

	reportService, err := reportapp.NewService(reportrepo.NewReportRepository(db),
		reportapp.WithUploader(uploader),
		reportapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("report service error: %v", err)
	}

	sosHandler, err := sessionhttp.NewHandler(sessionhttp.Deps{
		Opener:   alertService,
		Resolver: alertService,
		Uploader: uploader,
		Config:   sessionCfg,
	}, auditRepo)
	if err != nil {
		logger.Fatalf("sos handler error: %v", err)
	}
	defer sosHandler.Close()

	alertHandler, err := alerthttp.NewHandler(alertService, auditRepo)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	exportHandler, err := alerthttp.NewExportHandler(alertService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	reportHandler, err := reporthttp.NewHandler(reportService, auditRepo)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}
	deviceHandler, err := devices.NewHandler(deviceRegistry, auditRepo)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/sos/", sosHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/exports/alerts.xlsx", exportHandler)
	mux.Handle("/api/v1/reports", reportHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	mux.Handle("/api/v1/devices/register", deviceHandler)
	mux.HandleFunc("/api/v1/entry", entryHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := http.Handler(mux)
	if cfg.JWTSecret != "" {
		exemptPaths := []string{"/healthz", "/metrics"}
		var exemptPrefixes []string
		if !sessionCfg.RequireAuth {
			// Demo mode: citizens trigger SOS and register devices anonymously.
			exemptPaths = append(exemptPaths, "/api/v1/devices/register")
			exemptPrefixes = append(exemptPrefixes, "/api/v1/sos/")
		}
		policy := auth.NewDefaultPolicy(exemptPaths, exemptPrefixes)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)
	} else {
		logger.Printf("auth disabled: no jwt secret configured")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// entryHandler maps the caller's role to its dashboard entry route.
func entryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	role := auth.RoleFromContext(r.Context())
	route, ok := auth.EntryRoute(role)
	if !ok {
		role = auth.RoleCitizen
		route, _ = auth.EntryRoute(role)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"role":  string(role),
		"route": route,
	})
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	EvidenceDir      string
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisChannel     string
	PushGatewayURL   string
	PushTemplate     string
	PushTimeout      time.Duration
	PushDedupeWindow time.Duration
	JWTSecret        string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		EvidenceDir:      getenvDefault("EVIDENCE_DIR", "var/evidence"),
		MinioEndpoint:    getenvDefault("MINIO_ENDPOINT", ""),
		MinioAccessKey:   getenvDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getenvDefault("MINIO_SECRET_KEY", ""),
		MinioBucket:      getenvDefault("MINIO_BUCKET", "evidence"),
		MinioUseSSL:      getenvBoolDefault("MINIO_USE_SSL", false),
		RedisAddr:        getenvDefault("REDIS_ADDR", ""),
		RedisPassword:    getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:          getenvIntDefault("REDIS_DB", 0),
		RedisChannel:     getenvDefault("REDIS_CHANNEL", "safewatch:alerts"),
		PushGatewayURL:   getenvDefault("PUSH_GATEWAY_URL", ""),
		PushTemplate:     getenvDefault("PUSH_TEMPLATE", ""),
		PushTimeout:      getenvDuration("PUSH_TIMEOUT", 5*time.Second),
		PushDedupeWindow: getenvDuration("PUSH_DEDUP_WINDOW", 0),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
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

// Flush keeps SSE responses streaming through the middleware.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
