package main

import (
	"context"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/application/ingestion"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/cache"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/export"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/mqtt"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/realtime"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/telemetry"
	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
)

func main() {

	serviceName := "energy-dashboard"

	log := logging.NewLogger()
	log.Infof("Starting up %s ...", serviceName)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %s", err.Error())
	}

	loc, _ := cfg.Location()
	ctx := context.Background()

	connector, err := database.NewConnector(log, cfg.Database)
	if err != nil {
		log.Fatal(err.Error())
	}

	db, err := database.NewDatabaseConnection(connector, log)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %s", err.Error())
	}

	hub := realtime.NewHub(log)
	defer hub.Close()

	observers := []ingestion.Observer{
		ingestion.BroadcastTo(hub),
		ingestion.NewThresholdChecker(db, log),
	}

	var responses cache.KV
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Errorf("Response caching is disabled: %s", err.Error())
		} else {
			defer client.Close()
			responses = cache.NewRedisKV(client)
			observers = append(observers, ingestion.FlushCache(responses, log))
		}
	}

	if cfg.Messaging.Host != "" {
		messenger, err := messaging.Initialize(messaging.LoadConfiguration(serviceName))
		if err != nil {
			log.Errorf("Telemetry is disabled, failed to connect to the message broker: %s", err.Error())
		} else {
			defer messenger.Close()
			observers = append(observers, ingestion.PublishTo(telemetry.NewPublisher(messenger), log))
		}
	}

	svc := application.Services{
		DB:        db,
		Ingestion: ingestion.NewService(db, log, loc, observers...),
		Location:  loc,
		LiveFeed:  hub,
		Cache:     responses,
		CacheTTL:  cfg.CacheTTL(),
	}

	if cfg.MQTT.Broker != "" {
		subscriber, err := mqtt.NewSubscriber(cfg.MQTT, log, func(topic string, payload []byte) {
			svc.Ingestion.HandleMessage(ctx, topic, payload)
		})
		if err != nil {
			log.Errorf("MQTT ingestion is disabled: %s", err.Error())
		} else {
			defer subscriber.Close()
		}
	}

	if cfg.Export.Bucket != "" {
		client, err := export.NewS3Client(ctx, cfg.Export)
		if err != nil {
			log.Errorf("Report archiving is disabled: %s", err.Error())
		} else {
			svc.Archiver = export.NewArchiver(client, cfg.Export, log)
		}
	}

	application.CreateRouterAndStartServing(log, cfg.Service, svc)
}
