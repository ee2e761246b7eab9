package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/common"
	"github.com/dhirajc963/timebrew.news/internal/pipeline"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher puts stage messages on the queue. It is a pipeline.Invoker.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queues Queues

	// amqp channels are not safe for concurrent publishes.
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	q, err := Declare(ch, queue)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queues: q}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) Enqueue(ctx context.Context, runID string, stage pipeline.Stage) error {
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	return p.publish(ctx, p.queues.Main, StageMessage{MessageID: id, RunID: runID, Stage: stage}, 0)
}

// Retry parks m on the retry queue; it comes back to the main queue after delay.
func (p *Publisher) Retry(ctx context.Context, m StageMessage, delay time.Duration) error {
	return p.publish(ctx, p.queues.Retry, m, delay)
}

func (p *Publisher) publish(ctx context.Context, queue string, m StageMessage, ttl time.Duration) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.MessageID,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		msg,
	)
}
