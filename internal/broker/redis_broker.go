package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"syncBoard/internal/metrics"
)

// Envelope is a frame handed to the other relay instances. Target selects a
// single connection; otherwise the frame goes to RoomID minus Exclude.
type Envelope struct {
	Origin  string          `json:"origin"`
	Event   string          `json:"event"`
	RoomID  string          `json:"roomId,omitempty"`
	Target  string          `json:"target,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

type RedisBroker struct {
	redis      *redis.Client
	channel    string
	instanceID string
	outbound   chan Envelope
}

func NewRedisBroker(redis *redis.Client, channel, instanceID string, buffer int) *RedisBroker {
	if buffer <= 0 {
		buffer = 256
	}
	return &RedisBroker{
		redis:      redis,
		channel:    channel,
		instanceID: instanceID,
		outbound:   make(chan Envelope, buffer),
	}
}

func (rb *RedisBroker) InstanceID() string {
	return rb.instanceID
}

// Publish queues an envelope without blocking. It reports false when the
// queue is full and the envelope was dropped.
func (rb *RedisBroker) Publish(envelope Envelope) bool {
	envelope.Origin = rb.instanceID
	select {
	case rb.outbound <- envelope:
		return true
	default:
		log.Printf("RedisBroker.Publish - outbound queue full, dropping %s", envelope.Event)
		return false
	}
}

// Run drains the outbound queue until ctx is done.
func (rb *RedisBroker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope := <-rb.outbound:
			message, err := json.Marshal(envelope)
			if err != nil {
				log.Printf("RedisBroker.Run - error marshalling envelope: %v", err)
				continue
			}
			if err := rb.redis.Publish(ctx, rb.channel, message).Err(); err != nil {
				log.Printf("RedisBroker.Run - error publishing message: %v", err)
				continue
			}
			metrics.BrokerMessages.WithLabelValues("out").Inc()
		}
	}
}

// Subscribe returns the envelopes published by other instances. The channel
// is closed when ctx is done.
func (rb *RedisBroker) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	pubsub := rb.redis.Subscribe(ctx, rb.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	envelopes := make(chan Envelope, cap(rb.outbound))
	go func() {
		defer close(envelopes)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				envelope, err := rb.decode(msg.Payload)
				if err != nil {
					if !errors.Is(err, errOwnMessage) {
						log.Printf("RedisBroker.Subscribe - error unmarshalling message: %v", err)
					}
					continue
				}
				metrics.BrokerMessages.WithLabelValues("in").Inc()
				select {
				case envelopes <- envelope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return envelopes, nil
}

var errOwnMessage = errors.New("message published by this instance")

func (rb *RedisBroker) decode(payload string) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return envelope, err
	}
	if envelope.Origin == rb.instanceID {
		return envelope, errOwnMessage
	}
	return envelope, nil
}
