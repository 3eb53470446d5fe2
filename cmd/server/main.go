package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"selfcare-backend/config"
	"selfcare-backend/internal/alert"
	"selfcare-backend/internal/api"
	"selfcare-backend/internal/billing"
	"selfcare-backend/internal/broker"
	"selfcare-backend/internal/cashback"
	"selfcare-backend/internal/courier"
	"selfcare-backend/internal/cryptox"
	"selfcare-backend/internal/mailer"
	"selfcare-backend/internal/redisclient"
	"selfcare-backend/internal/service"
	"selfcare-backend/internal/sms"
	"selfcare-backend/internal/store"
	"selfcare-backend/internal/util"
	"selfcare-backend/internal/worker"
	"selfcare-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting selfcare backend")

	tp, err := util.InitTracer("selfcare-backend", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	key := cryptox.DeriveKey([]byte(cfg.Crypto.Passphrase), []byte(cfg.Crypto.Salt))
	codec, err := cryptox.NewCodec(key)
	if err != nil {
		log.Fatalf("Failed to initialize payload codec: %v", err)
	}

	db, err := store.NewStore(cfg.Database.URL, codec)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	notifier := alert.NewZapNotifier(logger)

	billingClient := billing.NewClient(cfg.Billing)
	smsClient := sms.NewClient(cfg.SMS)
	courierClient := courier.NewClient(cfg.Courier, redisClient)
	cashbackClient := cashback.NewClient(cfg.Cashback)
	mail := mailer.New(cfg.Email)

	engine := workflow.NewEngine(db, eventPublisher, notifier)
	confirmer := workflow.NewConfirmer(db, smsClient, billingClient, notifier,
		eventPublisher, cfg.Confirm.CodeLength, cfg.Confirm.TTL)

	contractService := service.NewContractService(engine, confirmer, billingClient,
		[]byte(cfg.Crypto.CancelLinkSecret))
	mnpService := service.NewMNPService(engine, confirmer, db, billingClient,
		smsClient, notifier, cfg.MNP)
	fixpayService := service.NewFixPayService(engine, confirmer, billingClient)
	changeNumberService := service.NewChangeNumberService(engine, billingClient, redisClient, notifier)
	feedbackService := service.NewFeedbackService(engine)
	cashbackService := service.NewCashbackService(db, cashbackClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, db, mail, cfg.Email.OrdersTo, notifier)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		contractService,
		mnpService,
		fixpayService,
		changeNumberService,
		feedbackService,
		cashbackService,
		courierClient,
		db,
		redisClient,
		notifier,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}
