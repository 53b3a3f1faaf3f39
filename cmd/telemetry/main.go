package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/api"
	"github.com/pranaysuyash/caption-art-sub009/internal/config"
	"github.com/pranaysuyash/caption-art-sub009/internal/delivery"
	"github.com/pranaysuyash/caption-art-sub009/internal/memwatch"
	"github.com/pranaysuyash/caption-art-sub009/internal/monitor"
	"github.com/pranaysuyash/caption-art-sub009/internal/source"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	demo := flag.Bool("demo", false, "Run with a synthetic telemetry source")
	flag.Parse()

	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	var src source.Source
	if *demo {
		fake := source.NewFake()
		fake.SetMemory(source.MemorySnapshot{
			UsedJSHeapSize:  64 << 20,
			TotalJSHeapSize: 128 << 20,
			JSHeapSizeLimit: 512 << 20,
			DOMNodeCount:    1200,
		})
		src = fake
		log.Info("Running with synthetic telemetry source")
	} else {
		src = source.Noop()
	}

	var sender delivery.Sender
	switch cfg.Delivery.Transport {
	case config.TransportKafka:
		ks := delivery.NewKafkaSender(cfg.Delivery.KafkaBrokers, cfg.Delivery.KafkaTopic)
		defer ks.Close()
		sender = ks
		if cfg.Delivery.Endpoint == "" {
			cfg.Delivery.Endpoint = cfg.Delivery.KafkaTopic
		}
	default:
		sender = delivery.NewHTTPSender()
	}

	var archive delivery.Archive
	if cfg.Delivery.RedisAddr != "" {
		ra := delivery.NewRedisArchive(cfg.Delivery.RedisAddr)
		defer ra.Close()
		if ra.Enabled() {
			archive = ra
		}
	}

	svc := delivery.NewService(delivery.Config{
		Endpoint:      cfg.Delivery.Endpoint,
		MaxQueueSize:  cfg.Delivery.MaxQueueSize,
		FlushInterval: cfg.Delivery.FlushInterval,
		SendTimeout:   cfg.Delivery.SendTimeout,
		UserAgent:     cfg.Delivery.UserAgent,
		Page:          cfg.Delivery.Page,
	}, sender, archive, nil, src.Now)

	memThresholds := memwatch.Thresholds{
		HeapWarningPercent:  cfg.Memory.HeapWarningPercent,
		HeapCriticalPercent: cfg.Memory.HeapCriticalPercent,
		DOMNodeWarning:      cfg.Memory.DOMNodeWarning,
		LeakGrowthRate:      cfg.Memory.LeakGrowthRate,
	}
	pm := monitor.New(src, svc, monitor.Options{
		MemorySampleInterval: cfg.Memory.SampleInterval,
		MemoryThresholds:     &memThresholds,
		Budget:               cfg.Budget,
		SpikeThreshold:       cfg.SpikeThresholdPercent,
	})
	pm.Start()

	handler := api.NewHandler(pm, log.StandardLogger(), nil)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Ops server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ops server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down telemetry agent...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Ops server forced to shutdown: %v", err)
	}

	pm.Stop()
	log.Info("Telemetry agent exited")
}
