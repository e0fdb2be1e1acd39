// internal/events/publisher.go
package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/adworldmediaonline/email-cron/internal/model"
)

const queueName = "delivery_events"

// Publisher fans reconciled delivery events out to a durable AMQP queue so
// downstream consumers (analytics, the operator console) can react without
// polling the database.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  amqp.Queue
	logger zerolog.Logger
}

func NewPublisher(url string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: q, logger: logger}, nil
}

func (p *Publisher) Publish(ev *model.DeliveryEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.ch.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) Close() {
	if err := p.ch.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("closing AMQP channel")
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("closing AMQP connection")
	}
}
