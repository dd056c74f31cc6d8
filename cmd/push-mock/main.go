// Command push-mock is a local stand-in for the push gateway used by the
// maintenance reminder sweep.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/logging"
)

type notification struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type receipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func main() {
	var (
		port      = pflag.StringP("port", "p", "9099", "port to listen on")
		apiKey    = pflag.String("api-key", "", "expected X-API-Key; empty accepts any")
		logFormat = pflag.String("log-format", "console", "log encoder: json or console")
	)
	pflag.Parse()

	logger, err := logging.New("info", *logFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var (
		mu   sync.Mutex
		seen = map[string]receipt{}
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/notifications", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		var n notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil || n.To == "" {
			http.Error(w, "invalid notification", http.StatusBadRequest)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		mu.Lock()
		rec, dup := seen[key]
		if !dup {
			rec = receipt{ID: uuid.NewString(), Status: "queued"}
			if key != "" {
				seen[key] = rec
			}
		}
		mu.Unlock()

		logger.Info("notification received",
			zap.String("to", n.To),
			zap.String("title", n.Title),
			zap.String("idempotency_key", key),
			zap.Bool("duplicate", dup),
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(rec)
	})

	addr := ":" + *port
	logger.Info("mock push gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
