package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"northcart-payment-engine/config"
	"northcart-payment-engine/database"
	"northcart-payment-engine/handlers"
	"northcart-payment-engine/middleware"
	"northcart-payment-engine/ratelimit"
	"northcart-payment-engine/services/payment"
	"northcart-payment-engine/services/processor"
	"northcart-payment-engine/services/vault"
	"northcart-payment-engine/services/webhook"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Signature")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		// Log only slow requests and errors.
		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			log.Printf(
				"%s %s %s %d %v",
				r.Method,
				r.RequestURI,
				middleware.ClientIP(r),
				wrapper.status,
				elapsed,
			)
		}
	})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)

	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	log.Printf("Server starting with %d CPUs available", numCPU)

	cfg := config.Load()
	log.Printf("Configuration loaded successfully")

	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.GetDB().PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Successfully connected to database")

	redisStore, err := ratelimit.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisStore.Close()
	log.Println("Successfully connected to Redis")

	limiter := ratelimit.NewLimiter(redisStore, cfg.RateLimit)

	client, err := processor.NewClient(cfg.Processor, limiter, processor.NewClassifier(processor.NoopResolver{}))
	if err != nil {
		log.Fatalf("Failed to initialize processor client: %v", err)
	}

	paymentStore := database.NewPaymentStore(db)
	vaultStore := database.NewVaultStore(db)

	vaultManager := vault.NewManager(client, vaultStore)
	orchestrator := payment.NewOrchestrator(client, paymentStore)
	refundResolver := payment.NewRefundResolver(client, paymentStore)

	verifier := webhook.NewVerifier(cfg.Webhook.Secret)
	eventProcessor := webhook.NewProcessor(paymentStore)

	paymentHandler, err := handlers.NewPaymentHandler(vaultManager, orchestrator, paymentStore)
	if err != nil {
		log.Fatalf("Failed to initialize payment handler: %v", err)
	}
	refundHandler, err := handlers.NewRefundHandler(refundResolver, paymentStore)
	if err != nil {
		log.Fatalf("Failed to initialize refund handler: %v", err)
	}
	cardHandler, err := handlers.NewCardHandler(vaultManager)
	if err != nil {
		log.Fatalf("Failed to initialize card handler: %v", err)
	}
	webhookHandler, err := handlers.NewWebhookHandler(verifier, eventProcessor)
	if err != nil {
		log.Fatalf("Failed to initialize webhook handler: %v", err)
	}
	healthHandler := handlers.NewHealthHandler(db.Ping, redisStore, client)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(loggingMiddleware)
	router.Use(middleware.SecurityHeaders)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/payments", paymentHandler.ProcessPayment).Methods("POST", "OPTIONS")
	api.HandleFunc("/payments/{id}", paymentHandler.GetPayment).Methods("GET", "OPTIONS")

	operatorAuth := middleware.OperatorAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	operator := api.NewRoute().Subrouter()
	operator.Use(operatorAuth)
	operator.HandleFunc("/refunds", refundHandler.ProcessRefund).Methods("POST", "OPTIONS")
	operator.HandleFunc("/profiles/{profileId}/cards/{cardId}", cardHandler.DeleteCard).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/webhooks/processor", webhookHandler.HandleEvent).Methods("POST")
	api.HandleFunc("/health", healthHandler.HealthCheck).Methods("GET")

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Closing database connections...")
	db.Close()

	log.Println("Closing Redis connections...")
	redisStore.Close()

	log.Println("Server exited properly")
}
