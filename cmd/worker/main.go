package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/kb-chat/internal/config"
	"github.com/suPer8Hu/kb-chat/internal/db"
	"github.com/suPer8Hu/kb-chat/internal/kb"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/store/rabbitmq"
)

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: "json", DevMode: cfg.LogDev})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.KBBaseURL == "" {
		log.Fatalw("KB_BASE_URL is required")
	}

	gdb := db.Connect(cfg.DBDSN)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalw("rabbit dial", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalw("rabbit channel", "err", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalw("queue declare", "err", err)
	}

	pub := rabbitmq.NewChannelPublisher(ch, cfg.RabbitQueue)
	svc := kb.NewService(kb.NewRepo(gdb), pub,
		kb.NewHTTPBackend(cfg.KBBaseURL, cfg.KBID, cfg.KBDataSourceID, cfg.KBServiceToken),
		kb.Options{
			KnowledgeBaseID: cfg.KBID,
			DataSourceID:    cfg.KBDataSourceID,
			Logger:          log.WithField("component", "kb"),
		})

	h := &jobHandler{
		runner:      svc,
		retrier:     pub,
		maxAttempts: cfg.WorkerMaxAttempts,
		log:         log,
	}

	//  strict concurrency control
	concurrency := workerConcurrency(cfg.WorkerConcurrency)

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalw("qos", "err", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalw("consume", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				h.handle(ctx, workerID, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Infow("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Errorw("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
