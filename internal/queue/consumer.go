package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

// terminalError marks a message that must not be redelivered.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the consumer terminates the message instead of
// asking for redelivery.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err was wrapped by Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// ackable is the subset of jetstream.Msg used to settle a message.
type ackable interface {
	Ack() error
	Nak() error
	Term() error
}

// settle acks, naks or terminates msg depending on the handler result.
func settle(msg ackable, err error) {
	switch {
	case err == nil:
		_ = msg.Ack()
	case IsTerminal(err):
		_ = msg.Term()
	default:
		_ = msg.Nak()
	}
}

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeUploads starts consuming storage notifications from the UPLOADS
// stream. workerCount determines how many goroutines process messages
// concurrently.
func (c *Consumer) ConsumeUploads(ctx context.Context, consumerName string, handler MessageHandler, workerCount int) error {
	if workerCount < 1 {
		workerCount = 1
	}
	stream, err := c.js.Stream(ctx, UploadsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", UploadsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    5,
		FilterSubject: UploadsSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch uploads error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				err := handler(ctx, msg)
				if err != nil {
					slog.Error("process upload error", "worker", workerID, "error", err,
						"subject", msg.Subject(), "terminal", IsTerminal(err))
				}
				settle(msg, err)
			}
		}(i)
	}

	slog.Info("upload consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumeFaceEvents starts consuming face events (for the API to broadcast
// via WebSocket). Only events published after the consumer starts are
// delivered.
func (c *Consumer) ConsumeFaceEvents(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, FacesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FacesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: FacesSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				err := handler(ctx, msg)
				if err != nil {
					slog.Error("process face event error", "error", err)
				}
				settle(msg, err)
			}
		}
	}()

	slog.Info("face event consumer started", "consumer", consumerName)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
