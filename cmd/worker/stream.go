package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/match-stream/internal/app"
	"github.com/jmehdipour/match-stream/internal/config"
	httpx "github.com/jmehdipour/match-stream/internal/http"
	"github.com/jmehdipour/match-stream/internal/kafka"
	"github.com/jmehdipour/match-stream/internal/logger"
	"github.com/jmehdipour/match-stream/internal/natsutil"
	"github.com/jmehdipour/match-stream/internal/service/match"
	"github.com/jmehdipour/match-stream/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Consume match change events and apply their side effects",
	RunE:  runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Log.Sync() }()
	log := logger.Named("stream")

	// 2) refuse to start without store identifiers
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 3) stores
	stores, err := app.OpenStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	// 4) coordinator
	coord, err := match.New(cfg, stores.Match(), logger.Named("coordinator"))
	if err != nil {
		return err
	}

	// 5) transport
	src, dlq, closeTransport, err := openTransport(cfg, log)
	if err != nil {
		return err
	}
	defer closeTransport()

	w := worker.NewStreamWorker(src, coord, dlq, log)

	// tune knobs
	if cfg.Stream.BatchSize > 0 {
		w.BatchSize = cfg.Stream.BatchSize
	}
	if cfg.Stream.BatchWait > 0 {
		w.BatchWait = cfg.Stream.BatchWait
	}
	if cfg.Stream.RetryAttempts >= 0 {
		w.RetryAttempts = cfg.Stream.RetryAttempts
	}
	if cfg.Stream.RetryBackoff > 0 {
		w.RetryBackoff = cfg.Stream.RetryBackoff
	}

	// 6) ops http
	srv := httpx.NewServer(logger.Named("http"), stores.Checks())
	go func() {
		if err := srv.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server stopped", zap.Error(err))
		}
	}()

	// 7) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("stream worker started",
		zap.String("driver", cfg.Stream.Driver),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
		zap.Int("retry_attempts", w.RetryAttempts),
	)

	runErr := w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return runErr
}

// openTransport builds the source and dead-letter sink for the configured driver.
func openTransport(cfg *config.Config, log *zap.Logger) (worker.Source, worker.DeadLetter, func(), error) {
	switch cfg.Stream.Driver {
	case "", "kafka":
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = cfg.Stores.Match
		}
		if topic == "" {
			return nil, nil, nil, errors.New("kafka: no topic (set kafka.topic or stores.match)")
		}
		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          topic,
			GroupID:        cfg.Kafka.GroupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
		log.Info("kafka transport", zap.String("topic", topic), zap.String("group", cfg.Kafka.GroupID), zap.String("dlq", cfg.Kafka.DeadLetterTopic))

		closeFn := func() {
			_ = consumer.Close()
			_ = producer.Close()
		}
		return &worker.KafkaSource{Consumer: consumer}, producer, closeFn, nil

	case "jetstream":
		js := cfg.JetStream
		client, err := natsutil.ConnectJetStreamWithRetry(js.URL, js.Stream, js.ConnectTimeout)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("jetstream connect: %w", err)
		}
		src, err := worker.NewJetStreamSource(client.JS, js.Subject, js.Durable, js.AckWait)
		if err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("jetstream subscribe: %w", err)
		}
		log.Info("jetstream transport", zap.String("subject", js.Subject), zap.String("durable", js.Durable), zap.String("dlq", js.DeadLetterSubject))

		dlq := natsutil.JetStreamPublisher{JS: client.JS, Subject: js.DeadLetterSubject}
		return src, dlq, client.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown stream driver %q", cfg.Stream.Driver)
	}
}
