package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/docs"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/config"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/database"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/handlers"
	mW "github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/middleware"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

// @title Cashless School Payments API
// @version 1.0
// @description Payment gateway integration and reconciliation engine for school cashless programs
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Cashless School Payments API"
	docs.SwaggerInfo.Description = "Payment gateway integration and reconciliation engine for school cashless programs"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	gatewaySettings := config.LoadGatewaySettings()
	gatewayFactory := gateway.NewFactory(gatewaySettings.Providers)

	auditor := audit.NewAuditLogger()

	balanceService := services.NewVendorBalanceService(db)
	ledgerService := services.NewLedgerService(db, balanceService)
	terminalService := services.NewTerminalService(db)
	reconciliationService := services.NewReconciliationService(ledgerService, terminalService, auditor)
	refundService := services.NewRefundService(ledgerService, gatewayFactory, auditor)
	paymentService := services.NewPaymentService(ledgerService, terminalService, gatewayFactory, redisClient, auditor)
	settlementService := services.NewSettlementService(ledgerService, redisClient, auditor)
	pixService := services.NewPixService(redisClient, terminalService)

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	transactionHandler := handlers.NewTransactionHandler(ledgerService, balanceService)
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)
	refundHandler := handlers.NewRefundHandler(refundService)
	terminalHandler := handlers.NewTerminalHandler(terminalService)
	pixHandler := handlers.NewPixHandler(pixService)

	// Settlement worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if redisClient != nil {
		go settlementService.Run(workerCtx, 30*time.Second)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments", paymentHandler.ProcessPayment)

		r.Get("/transactions/{transactionID}", transactionHandler.GetTransaction)

		r.Post("/refunds", refundHandler.CreateRefund)

		r.Post("/terminals", terminalHandler.RegisterTerminal)
		r.Get("/terminals", terminalHandler.ListTerminals)
		r.Get("/terminals/{terminalID}", terminalHandler.GetTerminal)
		r.Patch("/terminals/{terminalID}/status", terminalHandler.UpdateTerminalStatus)
		r.Post("/terminals/{terminalID}/reconcile", reconciliationHandler.Reconcile)

		r.Get("/vendors/{vendorID}/transactions", transactionHandler.ListVendorTransactions)
		r.Get("/vendors/{vendorID}/financials", transactionHandler.GetVendorFinancials)
		r.Get("/vendors/{vendorID}/commission-tiers", transactionHandler.GetCommissionTiers)

		r.Post("/pix/charges", pixHandler.CreatePixCharge)
		r.Post("/pix/charges/{chargeID}/consume", pixHandler.ConsumePixCharge)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
