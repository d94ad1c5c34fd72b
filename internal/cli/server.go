package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"raise-service/internal/app"
	"raise-service/internal/assessment"
	"raise-service/internal/config"
	"raise-service/internal/infra/memory"
	pgstore "raise-service/internal/infra/postgres"
	redisstore "raise-service/internal/infra/redis"
	"raise-service/internal/logging"
	"raise-service/internal/reference"
	transport "raise-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the guidance API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, os.Stderr)

	data, err := reference.Load()
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(reg)

	scorer := assessment.NewScorer(data.Bank, assessment.WithThresholds(cfg.Assessment.Thresholds()))
	opts := []app.Option{app.WithLogger(logger)}
	router := transport.NewRouter(transport.Dependencies{
		Guidance: app.NewGuidanceService(data.Graph, scorer, metrics, logger),
		Research: app.NewResearchService(st.consents, st.sessions, data.Graph, metrics, opts...),
		Projects: app.NewProjectService(st.projects, data.Catalog, metrics, opts...),
		Gatherer: reg,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting raise service", "port", finalPort, "stores", st.describe())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// stores is the repository wiring chosen from configuration. Sessions go to
// Redis when it is configured. Postgres holds consent and projects, with
// projects behind a read cache.
type stores struct {
	consents app.ConsentRepository
	sessions app.SessionRepository
	projects app.ProjectRepository

	redis *redis.Client
	pool  *pgxpool.Pool
}

func openStores(ctx context.Context, cfg config.Config, logger *log.Logger) (*stores, error) {
	st := &stores{}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Redis.Addr != "" {
		g.Go(func() error {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := client.Ping(gctx).Err(); err != nil {
				_ = client.Close()
				return fmt.Errorf("connect redis: %w", err)
			}
			st.redis = client
			return nil
		})
	}
	if cfg.Postgres.URL != "" {
		g.Go(func() error {
			if err := runMigrationsWithConfig(gctx, cfg, logger); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(gctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			st.pool = pool
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		st.close()
		return nil, err
	}

	var base app.Store = memory.NewStore()
	if st.redis != nil {
		base = redisstore.NewStore(st.redis, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	}
	st.consents, st.sessions, st.projects = base, base, base

	if st.pool != nil {
		ps := pgstore.NewStore(st.pool)
		st.consents = ps
		st.projects = memory.NewProjectCache(ps, time.Minute)
		if st.redis == nil {
			st.sessions = ps
		}
	}
	return st, nil
}

func (s *stores) describe() string {
	switch {
	case s.pool != nil && s.redis != nil:
		return "postgres+redis"
	case s.pool != nil:
		return "postgres"
	case s.redis != nil:
		return "redis"
	default:
		return "memory"
	}
}

func (s *stores) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
