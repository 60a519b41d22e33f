package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpsketch/privsketch/pkg/config"
	"github.com/dpsketch/privsketch/pkg/observability"
	"github.com/dpsketch/privsketch/pkg/privsketch"
)

// serveReadHeaderTimeout bounds how long the server waits for request headers.
const serveReadHeaderTimeout = 10 * time.Second

// ServeCommand holds the flags for the serve command.
type ServeCommand struct {
	configPath     string
	idColumn       string
	categoryColumn string
	input          string
}

// NewServeCommand creates and configures the serve command.
func NewServeCommand() *cobra.Command {
	sc := &ServeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "serve --input <csv-file>",
		Short: "Ingest a CSV once, then serve readouts and Prometheus metrics over HTTP",
		Long: "Ingests --input into a single in-memory sketch at startup (the process " +
			"holds the only copy; nothing is persisted to disk) and serves GET " +
			"/v1/estimate?category=NAME and GET /metrics until interrupted.",
		RunE: sc.Run,
	}

	cobraCmd.Flags().StringVar(&sc.configPath, "config", "", "Path to a YAML config file")
	cobraCmd.Flags().StringVar(&sc.idColumn, "id-column", "caseid", "CSV column holding the user id")
	cobraCmd.Flags().StringVar(&sc.categoryColumn, "category-column", "category", "CSV column holding the reported category")
	cobraCmd.Flags().StringVar(&sc.input, "input", "", "CSV to ingest at startup (required)")

	return cobraCmd
}

// Run executes the serve command.
func (sc *ServeCommand) Run(cobraCmd *cobra.Command, _ []string) error {
	if sc.input == "" {
		return errors.New("serve: --input is required")
	}

	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	events, universe, err := readEvents(sc.input, sc.idColumn, sc.categoryColumn)
	if err != nil {
		return err
	}

	sk, err := buildSketch(cfg, universe)
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeServer
	obsCfg.ServiceName = "privsketch"

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() { _ = providers.Shutdown(context.Background()) }()

	metricsHandler, mp, err := observability.PrometheusScrapeHandler()
	if err != nil {
		return err
	}

	defer func() { _ = mp.Shutdown(context.Background()) }()

	im, err := observability.NewIngestMetrics(mp.Meter("privsketch"))
	if err != nil {
		return err
	}

	if err := ingestAllTimed(ctx, sk, events, im); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/v1/estimate", estimateHandler(sk, im))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           observability.HTTPMiddleware(providers.Tracer, providers.Logger, mux),
		ReadHeaderTimeout: serveReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveReadHeaderTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	providers.Logger.Info("serving", "addr", server.Addr)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

func estimateHandler(sk *privsketch.Sketch, im *observability.IngestMetrics) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		category := hr.URL.Query().Get("category")

		estimate, err := sk.Estimate(category)
		if err != nil {
			im.RecordEstimate(hr.Context(), category, "error")
			http.Error(rw, err.Error(), http.StatusBadRequest)

			return
		}

		im.RecordEstimate(hr.Context(), category, "ok")

		rw.Header().Set("Content-Type", "application/json")

		_ = json.NewEncoder(rw).Encode(map[string]any{
			"category": category,
			"estimate": estimate,
		})
	})
}
