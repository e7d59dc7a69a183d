package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/outfit-lens/internal/auth"
	"github.com/fpang/outfit-lens/internal/gateway"
	"github.com/fpang/outfit-lens/internal/logging"
	"github.com/fpang/outfit-lens/internal/schedule"
	"github.com/fpang/outfit-lens/internal/store"
	"github.com/fpang/outfit-lens/internal/vision"
	"github.com/fpang/outfit-lens/internal/visqueue"
)

// CLI flags
var (
	portFlag    int
	dataDirFlag string
	modelFlag   string
	baseURLFlag string
)

var rootCmd = &cobra.Command{
	Use:   "outfit-web",
	Short: "Web backend for AI outfit analysis",
	Long: `Outfit Web starts a local server that analyzes outfit photos with a
vision model: basic scores, itemized breakdowns, occasion matching, and
style suggestions. Results are kept as JSON records on disk.

Examples:
  outfit-web
  outfit-web --port 9090
  outfit-web --data-dir /var/lib/outfit-lens --model grok-2-vision`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&dataDirFlag, "data-dir", "data", "Directory for images, analyses, and feedback")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", vision.DefaultModel, "Vision model to use")
	rootCmd.Flags().StringVar(&baseURLFlag, "base-url", vision.DefaultBaseURL, "Vision API base URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	startupStart := time.Now()

	// Validate API key at startup
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := vision.NewClient(vision.Config{
		APIKey:  apiKey,
		BaseURL: baseURLFlag,
		Model:   modelFlag,
	})
	if err := auth.ValidateAPIKey(ctx, client.API(), client.Model()); err != nil {
		log.Fatal().Err(err).Msg("Invalid API key")
	}

	st := store.New(dataDirFlag)
	if err := st.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Str("dir", dataDirFlag).Msg("Failed to initialize storage")
	}

	queue := visqueue.New(true)
	gw := gateway.New(st, client, gateway.WithQueue(queue))

	// Periodic eviction keeps the result cache from accumulating stale
	// entries between requests.
	sched := schedule.New(schedule.RealClock{})
	go sched.Every(ctx, "cache-sweep", time.Minute, func(context.Context) error {
		gw.Cache().Sweep()
		return nil
	})

	srv := newServer(gw, st)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/mcp", srv.handleOperation)
	mux.HandleFunc("/api/images/path", srv.handleImageByPath)
	mux.HandleFunc("/api/images/", srv.handleImage)
	mux.HandleFunc("/api/visibility", srv.handleVisibility)

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logging.NewStartupLogger("outfit-web").
		Config("port", fmt.Sprintf("%d", portFlag)).
		Config("dataDir", dataDirFlag).
		Config("model", modelFlag).
		Config("baseURL", baseURLFlag).
		Config("logLevel", logging.EnvOrDefault("OUTFIT_LOG_LEVEL", "info")).
		Feature("visibilityQueue", true).
		InitDuration(time.Since(startupStart)).
		Log()

	log.Info().Int("port", portFlag).Msg("Starting web server")
	fmt.Printf("\n  Outfit Lens API: http://localhost:%d\n\n", portFlag)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
