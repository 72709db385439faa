// Package events publishes fetch progress to a RabbitMQ topic exchange so
// other services can follow a job as it runs.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

const (
	KeyJobStarted    = "job.started"
	KeyJobFinished   = "job.finished"
	KeyResultSuccess = "result.success"
	KeyResultFailure = "result.failure"
)

type JobStarted struct {
	JobID   string `json:"job_id"`
	Total   int    `json:"total"`
	Workers int    `json:"workers"`
}

type Result struct {
	JobID string `json:"job_id"`
	domain.FetchResult
	Seen  int `json:"seen"`
	Total int `json:"total"`
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher is an engine.Observer. Publish failures are logged and never
// affect the job.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	exchange string
	jobID    string
	log      *logger.Logger
}

var _ engine.Observer = (*Publisher)(nil)

// Dial connects to url, retrying with exponential backoff, and declares
// exchange as a durable topic exchange.
func Dial(url, exchange string, log *logger.Logger) (*Publisher, error) {
	log = log.Named("events")

	var conn *amqp.Connection
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute

	err := backoff.RetryNotify(
		func() error {
			var err error
			conn, err = amqp.Dial(url)
			return err
		},
		policy,
		func(err error, wait time.Duration) {
			log.Error("failed to connect to RabbitMQ, waiting %s: %v", wait.Truncate(time.Millisecond), err)
		},
	)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log *logger.Logger) *Publisher {
	return &Publisher{channel: ch, exchange: exchange, log: log}
}

func (p *Publisher) JobStarted(job *domain.Job, total, workers int) {
	p.mu.Lock()
	p.jobID = job.ID
	p.mu.Unlock()

	p.publish(KeyJobStarted, JobStarted{JobID: job.ID, Total: total, Workers: workers})
}

func (p *Publisher) ResultReceived(res domain.FetchResult, snap engine.Snapshot) {
	key := KeyResultSuccess
	if !res.OK() {
		key = KeyResultFailure
	}
	p.publish(key, Result{JobID: p.currentJob(), FetchResult: res, Seen: snap.Seen, Total: snap.Total})
}

func (p *Publisher) JobFinished(summary domain.Summary) {
	p.publish(KeyJobFinished, summary)
}

func (p *Publisher) currentJob() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

func (p *Publisher) publish(routingKey string, message interface{}) {
	body, err := json.Marshal(message)
	if err != nil {
		p.log.Error("failed to encode %s event: %v", routingKey, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		p.log.Warn("failed to publish %s event: %v", routingKey, err)
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.Close()
	if p.conn != nil && !p.conn.IsClosed() {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
