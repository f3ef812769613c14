package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ordercore/config"
	"ordercore/models"
	"ordercore/pkg/logger"
)

// session is one open publishing channel.
type session interface {
	Publish(ctx context.Context, queue string, msg amqp.Publishing) error
	IsClosed() bool
	Close()
}

// Publisher sends order events to the analytics queues. One channel is shared
// and guarded by a mutex. A channel or connection closed by the broker is
// reopened on the next publish.
type Publisher struct {
	mu            sync.Mutex
	open          func() (session, error)
	current       session
	release       func()
	orderQueue    string
	lineItemQueue string
}

func NewPublisher(cfg config.RabbitMQConfig) (*Publisher, error) {
	d := &dialer{url: cfg.URL, queues: []string{cfg.OrderQueue, cfg.LineItemQueue}}
	p := newPublisher(d.open, cfg.OrderQueue, cfg.LineItemQueue)

	s, err := d.open()
	if err != nil {
		return nil, err
	}
	p.current = s
	p.release = d.close
	return p, nil
}

func newPublisher(open func() (session, error), orderQueue, lineItemQueue string) *Publisher {
	return &Publisher{open: open, orderQueue: orderQueue, lineItemQueue: lineItemQueue}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
	if p.release != nil {
		p.release()
	}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	return p.publish(ctx, p.orderQueue, evt)
}

func (p *Publisher) PublishLineItemEvent(ctx context.Context, evt models.LineItemEvent) error {
	return p.publish(ctx, p.lineItemQueue, evt)
}

func (p *Publisher) publish(ctx context.Context, queue string, evt interface{}) error {
	msg, err := newMessage(evt, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishOnce(ctx, queue, msg)
	if errors.Is(err, amqp.ErrClosed) {
		logger.L().Warn("Publisher channel closed, reopening", zap.String("queue", queue))
		p.drop()
		err = p.publishOnce(ctx, queue, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

func (p *Publisher) publishOnce(ctx context.Context, queue string, msg amqp.Publishing) error {
	s, err := p.session()
	if err != nil {
		return err
	}
	// Default exchange routes by queue name.
	return s.Publish(ctx, queue, msg)
}

// session returns the open session, reopening it when the broker closed it.
// Callers hold p.mu.
func (p *Publisher) session() (session, error) {
	if p.current != nil && !p.current.IsClosed() {
		return p.current, nil
	}
	p.drop()
	s, err := p.open()
	if err != nil {
		return nil, err
	}
	p.current = s
	return s, nil
}

func (p *Publisher) drop() {
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
}

// dialer keeps the connection across channel reopens and redials it once the
// broker has closed it.
type dialer struct {
	url    string
	queues []string
	conn   *amqp.Connection
}

func (d *dialer) open() (session, error) {
	if d.conn == nil || d.conn.IsClosed() {
		conn, err := amqp.Dial(d.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		d.conn = conn
	}

	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	for _, q := range d.queues {
		if err := declareQueue(ch, q); err != nil {
			ch.Close()
			return nil, err
		}
	}

	return &amqpSession{
		conn:    d.conn,
		channel: ch,
		closed:  ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func (d *dialer) close() {
	if d.conn != nil {
		d.conn.Close()
	}
}

type amqpSession struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  chan *amqp.Error
	done    bool
}

func (s *amqpSession) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	return s.channel.PublishWithContext(ctx, "", queue, false, false, msg)
}

func (s *amqpSession) IsClosed() bool {
	if s.done || s.conn.IsClosed() {
		return true
	}
	select {
	case <-s.closed:
		s.done = true
	default:
	}
	return s.done
}

// Close releases the channel. The connection belongs to the dialer.
func (s *amqpSession) Close() {
	if !s.done {
		s.channel.Close()
		s.done = true
	}
}
