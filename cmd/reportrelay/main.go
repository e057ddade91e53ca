package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportrelay/internal/config"
	"reportrelay/internal/core/pubsub"
	"reportrelay/internal/core/pubsub/nats"
	"reportrelay/internal/logging"
	"reportrelay/internal/relay"
	"reportrelay/internal/relay/directory"
	"reportrelay/internal/relay/journal"
	"reportrelay/internal/relay/metrics"
	"reportrelay/internal/relay/transport"
	"reportrelay/internal/secrets"
)

func main() {
	configPath := flag.String("config", "config/config.yml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logging.Initialize(cfg.Logging)
	slog.Info("Starting report relay")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Credentials for the queue and the directory service.
	provider := secrets.New()
	apiKey, err := provider.GetSecret(ctx, secrets.KeyAPIKey)
	if err != nil {
		log.Fatalf("Failed to load API key: %v", err)
	}
	signingSecret, _ := provider.GetSecret(ctx, secrets.KeySigningSecret)

	queueURL, err := queueURL(ctx, provider, cfg.Queue.URL)
	if err != nil {
		log.Fatalf("Failed to build queue URL: %v", err)
	}

	// Broker connection.
	broker := nats.NewProvider(queueURL)
	if err := broker.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer broker.Close()

	consumer, err := broker.NewConsumer(pubsub.ConsumerOptions{
		StreamName:    cfg.Queue.StreamName,
		ConsumerName:  cfg.Queue.ConsumerName,
		FilterSubject: cfg.Queue.FilterSubject,
		AckWait:       time.Duration(cfg.Queue.AckWait),
	})
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}

	publisher, err := broker.NewPublisher(pubsub.PublisherOptions{
		StreamName: cfg.Queue.StreamName,
		Subjects:   []string{cfg.Queue.FilterSubject},
	})
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	// Delivery journal.
	var deliveryJournal journal.Journal
	if cfg.Journal.Enabled {
		mongoJournal, err := journal.NewMongoJournal(ctx, cfg.Journal.MongoURI, cfg.Journal.Database)
		if err != nil {
			log.Fatalf("Failed to connect journal store: %v", err)
		}
		defer mongoJournal.Close(context.Background())
		deliveryJournal = mongoJournal
	} else {
		deliveryJournal = journal.NewMemoryJournal()
	}

	// Metrics endpoint.
	relayMetrics := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			slog.Info("Metrics listener started", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				slog.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	svc, err := relay.NewService(relay.Dependencies{
		Consumer:  consumer,
		Publisher: publisher,
		Resolver:  directory.NewClient(cfg.Directory.BaseURL, apiKey),
		Transport: transport.New(transport.Options{SigningSecret: signingSecret}),
		Journal:   deliveryJournal,
		Metrics:   relayMetrics,
	}, relay.Options{
		NumWorkers:   cfg.WorkerCount,
		RetrySubject: cfg.Retry.Subject,
		RetryDelay:   time.Duration(cfg.Retry.Delay),
		MaxAttempts:  cfg.Retry.MaxAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to initialize relay: %v", err)
	}

	// Run until interrupted.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("Shutting down...")
		runCancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Fatalf("Relay stopped: %v", err)
		}
	}

	slog.Info("Report relay stopped")
}

// queueURL combines the configured NATS URL with credentials from the
// secrets source when present.
func queueURL(ctx context.Context, provider secrets.Provider, raw string) (string, error) {
	host, err := provider.GetSecret(ctx, secrets.KeyHost)
	if err != nil {
		// No queue secrets configured; use the URL as-is.
		return raw, nil
	}
	port, err := provider.GetSecret(ctx, secrets.KeyPort)
	if err != nil {
		return "", err
	}
	username, err := provider.GetSecret(ctx, secrets.KeyUsername)
	if err != nil {
		return "", err
	}
	password, err := provider.GetSecret(ctx, secrets.KeyPassword)
	if err != nil {
		return "", err
	}

	u := url.URL{
		Scheme: "nats",
		User:   url.UserPassword(username, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
	}
	return u.String(), nil
}
