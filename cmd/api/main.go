package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/attachments"
	"github.com/top-ti/inventory-go/cmd/api/auth"
	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/cmd/api/exports"
	"github.com/top-ti/inventory-go/cmd/api/metrics"
	"github.com/top-ti/inventory-go/cmd/api/purchases"
	"github.com/top-ti/inventory-go/internal/esign"
	"github.com/top-ti/inventory-go/internal/s3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	_ = godotenv.Load()
	cfg := app.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// Migrate (embedded goose) using the pgx stdlib driver.
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("goose dialect")
	}
	sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("sql open for goose")
	}
	defer sqldb.Close()
	if err := goose.UpContext(ctx, sqldb, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrate up")
	}

	keyf := jwksKeyfunc(ctx, cfg)

	var mc *minio.Client
	if cfg.MinIOEndpoint != "" {
		mc, err = minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccess, cfg.MinIOSecret, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio init")
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	var store app.ObjectStore
	if mc != nil {
		store = mc
	} else if cfg.FileStorePath != "" {
		if err := os.MkdirAll(cfg.FileStorePath, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.FileStorePath).Msg("create filestore path")
		}
		store = &app.FsObjectStore{Base: cfg.FileStorePath}
	}

	if cfg.AuthMode == "local" && cfg.Env == "dev" {
		if err := auth.SeedLocalAdmin(ctx, pool, cfg.AdminPassword); err != nil {
			log.Error().Err(err).Msg("seed local admin")
		}
	}

	a := app.NewApp(cfg, pool, keyf, store, rdb)
	if mc != nil {
		a.S3 = &s3.Service{Client: mc, Bucket: cfg.MinIOBucket, MaxTTL: time.Hour}
	}
	if cfg.EsignBaseURL != "" {
		a.Esign = esign.New(cfg.EsignBaseURL, cfg.EsignAPIKey)
		a.Renderer = esign.TemplateRenderer{}
	}

	metrics.Register(prometheus.DefaultRegisterer)
	routes(a)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        a.R,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Info().Str("addr", cfg.Addr).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("listen")
	}
}

func routes(a *app.App) {
	a.R.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	a.R.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if a.Cfg.AuthMode == "local" {
		a.R.POST("/login", auth.Login(a))
		a.R.POST("/logout", auth.Logout)
	}

	api := a.R.Group("/api")
	api.Use(auth.Middleware(a))
	api.GET("/me", auth.Me)

	equipment.RegisterRoutes(api, a)
	purchases.RegisterRoutes(api, a)
	attachments.RegisterRoutes(api, a)
	exports.RegisterRoutes(api, a)
}

// jwksKeyfunc fetches the JWKS on startup and refreshes it periodically.
// Returns nil when no JWKS URL is configured.
func jwksKeyfunc(ctx context.Context, cfg app.Config) jwt.Keyfunc {
	if cfg.JWKSURL == "" {
		return nil
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	set, err := jwk.Fetch(ctx, cfg.JWKSURL, jwk.WithHTTPClient(httpClient))
	if err != nil {
		log.Fatal().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("fetch jwks")
	}
	setPtr := &set
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if newSet, err := jwk.Fetch(context.Background(), cfg.JWKSURL, jwk.WithHTTPClient(httpClient)); err == nil {
				*setPtr = newSet
			}
		}
	}()
	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			if key, ok := (*setPtr).LookupKeyID(kid); ok {
				var pub interface{}
				if err := key.Raw(&pub); err != nil {
					return nil, err
				}
				return pub, nil
			}
		}
		it := (*setPtr).Iterate(context.Background())
		if it.Next(context.Background()) {
			pair := it.Pair()
			if key, ok := pair.Value.(jwk.Key); ok {
				var pub interface{}
				if err := key.Raw(&pub); err != nil {
					return nil, err
				}
				return pub, nil
			}
		}
		return nil, fmt.Errorf("no jwk for kid: %s", kid)
	}
}
