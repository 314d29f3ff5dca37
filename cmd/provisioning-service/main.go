package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/naccdata/identifier-provisioning/pkg/common/config"
	"github.com/naccdata/identifier-provisioning/pkg/common/database"
	"github.com/naccdata/identifier-provisioning/pkg/common/kafka"
	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/naccdata/identifier-provisioning/pkg/demographics"
	"github.com/naccdata/identifier-provisioning/pkg/enrollment"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
	"github.com/naccdata/identifier-provisioning/pkg/provisioning"
	"github.com/naccdata/identifier-provisioning/pkg/transfers"
)

type ProvisioningApp struct {
	service  *provisioning.Service
	consumer *kafka.Consumer
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	idRepo := identifiers.NewRepository(db)
	if err := idRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate identifier tables")
	}

	demoRepo := demographics.NewRepository(db)
	if err := demoRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate demographic tables")
	}

	transferRepo := transfers.NewRepository(db)
	if err := transferRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate transfer tables")
	}

	var ids identifiers.Store = idRepo
	var wrapStore func(identifiers.Store) identifiers.Store
	if cfg.IdentifierCacheTTL > 0 {
		cached := identifiers.NewCachedStore(idRepo, database.GetRedis(), cfg.IdentifierCacheTTL)
		ids = cached
		wrapStore = cached.WithStore
	}

	policy := demographics.DefaultPolicy()
	if cfg.FingerprintConfig != "" {
		policy, err = demographics.LoadPolicy(cfg.FingerprintConfig)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load fingerprint policy")
		}
	}
	fingerprinter := demographics.NewFingerprinter(policy)

	enrollmentSvc := enrollment.NewService(ids, demoRepo, fingerprinter, enrollment.NewGormTx(db, wrapStore))
	transferSvc := transfers.NewService(ids, transferRepo, transfers.NewGormTx(db, wrapStore))

	producer := kafka.NewProducer(cfg.ProvisioningTopic)
	defer producer.Close()

	var dlq *kafka.Producer
	if cfg.ProvisioningDLQTopic != "" {
		dlq = kafka.NewProducer(cfg.ProvisioningDLQTopic)
		defer dlq.Close()
	}

	var dlqPublisher provisioning.EventPublisher
	if dlq != nil {
		dlqPublisher = dlq
	}
	svc := provisioning.NewService(enrollmentSvc, transferSvc, ids, transferRepo, producer, dlqPublisher)

	app := &ProvisioningApp{service: svc}
	app.consumer = kafka.NewConsumer(cfg.EnrollmentFormsTopic, cfg.KafkaGroupID)
	defer app.consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := app.consumer.Consume(ctx, app.handleEvent); err != nil {
			logger.Log.WithError(err).Fatal("consumer error")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	provisioning.NewHTTPHandler(svc, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Identifier Provisioning Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Identifier Provisioning Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Identifier Provisioning Service stopped")
}

func (a *ProvisioningApp) handleEvent(ctx context.Context, event models.Event) error {
	record, err := parseProvisionRecord(event.Data)
	if err != nil {
		return err
	}
	outcome := a.service.ProcessRecord(ctx, record)
	if outcome.Status == models.StatusError {
		logger.Log.WithFields(map[string]interface{}{
			"code":    outcome.Code,
			"message": outcome.Message,
		}).Warn("provisioning record rejected")
	}
	return nil
}

func parseProvisionRecord(data map[string]interface{}) (models.ProvisionRecord, error) {
	payload, ok := data["record"].(map[string]interface{})
	if !ok {
		return models.ProvisionRecord{}, fmt.Errorf("record payload missing")
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		return models.ProvisionRecord{}, err
	}
	var record models.ProvisionRecord
	if err := json.Unmarshal(bytes, &record); err != nil {
		return models.ProvisionRecord{}, err
	}
	return record, nil
}
