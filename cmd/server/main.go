// Local development server. Serves the same transaction API the Lambda
// entrypoints serve behind API Gateway, against a selectable record store
// backend, with Prometheus metrics on /metrics.
//
// Authentication is delegated to the Cognito boundary exactly as in
// production unless AUTH_DISABLED=true, which trusts a X-User-Id header
// for fully offline development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
	"github.com/edinstance/aws-banking-system/internal/metrics"
	"github.com/edinstance/aws-banking-system/pkg/service"
	"github.com/edinstance/aws-banking-system/pkg/store"
	boltstore "github.com/edinstance/aws-banking-system/pkg/store/bolt"
	dynamostore "github.com/edinstance/aws-banking-system/pkg/store/dynamodb"
	immustore "github.com/edinstance/aws-banking-system/pkg/store/immudb"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logging.New("BankingServer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to open record store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	svc := service.New(db, service.Config{
		Environment:               cfg.Environment,
		IdempotencyExpirationDays: cfg.IdempotencyExpirationDays,
	}, log, recorder)

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		log.Error("failed to build auth verifier", "error", err)
		os.Exit(1)
	}

	srv := &server{svc: svc, verifier: verifier, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /save/transaction", srv.recordTransaction)
	mux.HandleFunc("GET /transactions", srv.listTransactions)
	mux.HandleFunc("GET /transactions/{id}", srv.getTransaction)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", "addr", cfg.ListenAddr, "backend", cfg.StoreBackend, "environment", cfg.Environment)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "dynamodb":
		if cfg.TableName == "" {
			return nil, fmt.Errorf("TRANSACTIONS_TABLE_NAME is required for the dynamodb backend")
		}
		s, err := dynamostore.New(ctx, dynamostore.Config{
			Region:      cfg.Region,
			TableName:   cfg.TableName,
			Endpoint:    cfg.DynamoDBEndpoint,
			CreateTable: cfg.DynamoDBEndpoint != "",
		})
		if err != nil {
			return nil, err
		}
		return s, s.Initialize(ctx)
	case "immudb":
		s := immustore.New(immustore.DefaultConfig())
		return s, s.Initialize(ctx)
	case "bolt":
		path := os.Getenv("BOLT_PATH")
		if path == "" {
			path = "transactions.db"
		}
		return boltstore.New(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildVerifier(ctx context.Context, cfg config.Config) (auth.Verifier, error) {
	if os.Getenv("AUTH_DISABLED") == "true" {
		return headerVerifier{}, nil
	}
	return auth.NewCognitoVerifier(ctx, cfg.Region, cfg.CognitoUserPoolID, cfg.CognitoClientID)
}

// headerVerifier trusts the presented token as the subject itself. Local
// development only.
type headerVerifier struct{}

func (headerVerifier) VerifySubject(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

type server struct {
	svc      *service.Service
	verifier auth.Verifier
	log      *slog.Logger
}

type requestBody struct {
	AccountID   string      `json:"accountId"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
}

func (s *server) authenticate(r *http.Request) (string, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.Header.Get("X-User-Id")
	}
	return s.verifier.VerifySubject(r.Context(), token)
}

func (s *server) recordTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing credentials.")
		return
	}

	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format in request body")
		return
	}

	result, err := s.svc.RecordTransaction(r.Context(), service.RecordInput{
		AccountID:      body.AccountID,
		Amount:         body.Amount.String(),
		Type:           body.Type,
		Description:    body.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		UserID:         userID,
		RequestID:      uuid.NewString(),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Record)
}

func (s *server) getTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing credentials.")
		return
	}

	record, err := s.svc.GetTransaction(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing credentials.")
		return
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId query parameter is required")
		return
	}

	records, err := s.svc.ListTransactions(r.Context(), userID, accountID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	var validation *transactions.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Reason)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied.")
	case store.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable. Please retry with the same Idempotency-Key.")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process transaction. Please try again.")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
