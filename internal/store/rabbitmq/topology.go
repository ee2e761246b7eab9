package rabbitmq

import amqp "github.com/rabbitmq/amqp091-go"

// Queues names the three queues that back one logical stage queue.
type Queues struct {
	Main  string
	Retry string
	DLQ   string
}

func QueuesFor(queue string) Queues {
	return Queues{Main: queue, Retry: queue + ".retry", DLQ: queue + ".dlq"}
}

// Declare creates the topology shared by publisher and worker:
// main dead-letters to DLQ on reject, retry dead-letters back to main
// once a message's TTL runs out.
func Declare(ch *amqp.Channel, queue string) (Queues, error) {
	q := QueuesFor(queue)

	if _, err := ch.QueueDeclare(
		q.DLQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return q, err
	}

	if _, err := ch.QueueDeclare(
		q.Retry,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.Main,
		},
	); err != nil {
		return q, err
	}

	if _, err := ch.QueueDeclare(
		q.Main,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.DLQ,
		},
	); err != nil {
		return q, err
	}
	return q, nil
}
