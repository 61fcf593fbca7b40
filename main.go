package main

import (
	"log"
	"net/http"

	"airtel-gateway/internal/airtel"
	"airtel-gateway/internal/config"
	"airtel-gateway/internal/db"
	"airtel-gateway/internal/event"
	"airtel-gateway/internal/logging"
	"airtel-gateway/internal/metrics"
	"airtel-gateway/internal/payment"
	"airtel-gateway/internal/reconcile"
	"airtel-gateway/internal/server"
	"airtel-gateway/internal/token"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	cfg := config.MustLoadConfig(".")
	cfg.Provider.ClientID = config.GetRequired("AIRTEL_CLIENT_ID")
	cfg.Provider.ClientSecret = config.GetRequired("AIRTEL_CLIENT_SECRET")

	logger := logging.GetLogger(cfg.Logs)

	metrics.Setup(cfg.Metrics)

	connStr := db.GetConnStr()
	db.RunMigrations(connStr, "migrations")

	dbpool, err := db.GetPool(connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer dbpool.Close()

	repo := db.NewOrderRepository(dbpool)

	client := airtel.NewClient(cfg.Provider, cfg.Merchant, logger)
	tokens := token.NewCache(client, logger)

	initiator := payment.NewInitiator(client, tokens, repo, cfg.Merchant, logger)
	verifier := payment.NewVerifier(client, tokens, logger)

	eventWriter := event.NewWriter(cfg.Kafka)
	defer eventWriter.Close()

	publisher := event.NewPublisher(eventWriter, logger)

	engine := reconcile.NewEngine(repo, publisher, logger)

	mux := http.NewServeMux()
	handler := server.NewHandler(repo, initiator, verifier, engine, cfg.Merchant, logger)
	handler.Register(mux)

	logger.Info("Starting server", "port", cfg.Server.Port, "testMode", cfg.Provider.TestMode, "title", cfg.Provider.Title)

	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, mux))
}
