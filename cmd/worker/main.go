package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/app"
	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/config"
	"github.com/dhirajc963/timebrew.news/internal/db"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	"github.com/dhirajc963/timebrew.news/internal/store/rabbitmq"
	"github.com/go-kratos/kratos/v2/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// redeliveryDelay is how long an interrupted stage waits on the retry
// queue before another worker picks it up.
const redeliveryDelay = 5 * time.Second

func main() {
	cfg := config.Load()
	logger := common.NewLogger("timebrew-worker", cfg.LogLevel)
	h := log.NewHelper(logger)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		h.Fatalf("db: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, gdb, app.NewRegistry(cfg, logger), app.NewMailer(cfg), logger)
	if err != nil {
		h.Fatalf("pipeline: %v", err)
	}

	// the publisher chains each finished stage to the next one
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		h.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()
	p.Runner.SetInvoker(pub)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		h.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		h.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	queues, err := rabbitmq.Declare(ch, cfg.RabbitQueue)
	if err != nil {
		h.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		h.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(queues.Main, "", false, false, false, false, nil)
	if err != nil {
		h.Fatalf("consume: %v", err)
	}

	h.Infow("msg", "worker started", "queue", queues.Main, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, h, p.Runner, pub, workerID, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			h.Infow("msg", "worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				h.Errorw("msg", "delivery channel closed")
				close(jobs)
				wg.Wait()
				os.Exit(1)
			}
			jobs <- d
		}
	}
}

func handleDelivery(ctx context.Context, h *log.Helper, runner *pipeline.Runner, pub *rabbitmq.Publisher, workerID int, d amqp.Delivery) {
	m, err := rabbitmq.DecodeStageMessage(d.Body)
	if err != nil {
		h.Warnw("msg", "bad message", "worker", workerID, "message_id", d.MessageId, "err", err)
		_ = d.Nack(false, false) // to DLQ
		return
	}

	// Shutdown before the stage starts: hand the message to another worker.
	if ctx.Err() != nil {
		requeue(h, pub, m, d)
		return
	}

	// In-flight stages run to completion; shutdown waits for them.
	start := time.Now()
	out := runner.Execute(context.WithoutCancel(ctx), m.RunID, m.Stage)
	h.Infow("msg", "stage handled", "worker", workerID, "run_id", m.RunID, "stage", m.Stage,
		"outcome", out.Kind, "cost", time.Since(start))

	if err := d.Ack(false); err != nil {
		h.Errorw("msg", "ack failed", "worker", workerID, "run_id", m.RunID, "err", err)
	}
}

func requeue(h *log.Helper, pub *rabbitmq.Publisher, m rabbitmq.StageMessage, d amqp.Delivery) {
	if err := pub.Retry(context.Background(), m, redeliveryDelay); err != nil {
		h.Errorw("msg", "park on retry queue", "run_id", m.RunID, "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
