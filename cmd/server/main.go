package main

import (
	"net/http"

	"campusmart-be/internal/config"
	"campusmart-be/internal/db"
	"campusmart-be/internal/dispute"
	"campusmart-be/internal/fulfillment"
	"campusmart-be/internal/handoff"
	"campusmart-be/internal/inventory"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/middleware"
	"campusmart-be/internal/order"
	"campusmart-be/internal/payment"
	"campusmart-be/internal/payment/webhook"
	"campusmart-be/internal/proof"
	"campusmart-be/internal/transport"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	gateway := payment.NewPaystackGateway(cfg.PaystackSecretKey)
	proofs := proof.NewClient(cfg.ProofServiceURL, cfg.ProofServiceKey)

	stockRepo := inventory.NewRepository(database)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, stockRepo)

	payRepo := payment.NewRepository(database)

	fulfillRepo := fulfillment.NewRepository(database)
	fulfillSvc := fulfillment.NewService(fulfillRepo, orderRepo, payRepo, stockRepo, order.FeeRule{
		Rate:      cfg.PlatformFeeRate,
		Flat:      cfg.PlatformFeeFlat,
		Threshold: cfg.PlatformFeeThreshold,
	})

	handoffRepo := handoff.NewRepository(database)
	handoffSvc := handoff.NewService(handoffRepo, orderSvc, orderRepo, proofs)

	disputeRepo := dispute.NewRepository(database)
	disputeSvc := dispute.NewService(disputeRepo, orderRepo, gateway)

	mux := http.NewServeMux()

	api := &transport.Handler{
		Orders:      orderSvc,
		Fulfillment: fulfillSvc,
		Handoff:     handoffSvc,
		Disputes:    disputeSvc,
		Gateway:     gateway,
		Payments:    payRepo,
	}
	api.RegisterRoutes(mux)

	wh := webhook.NewWebhookHandler(fulfillSvc, gateway)
	mux.HandleFunc("POST /webhook/payment", wh.WebhookHandler)

	handler := logger.RequestIDMiddleware(
		middleware.LoggingMiddleware(
			middleware.RateLimitMiddleware(
				middleware.AuthMiddleware(mux),
			),
		),
	)

	logger.L().Info("server listening", zap.String("port", cfg.AppPort))
	if err := http.ListenAndServe(":"+cfg.AppPort, handler); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
