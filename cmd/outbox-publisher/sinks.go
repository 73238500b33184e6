package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type pubSubTopics interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubSubFactory hands out one cached publisher per registry topic.
func pubSubFactory(client pubSubTopics) publisherFactory {
	cache := map[string]publisher{}
	return func(topic string) publisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		handle := client.Publisher(topic)
		if handle == nil {
			return nil
		}
		pub := &gcpPublisher{Publisher: handle}
		cache[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg outboundMessage) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

type kafkaWriter interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// kafkaFactory sends every registry topic to the single Kafka topic. The
// registry topic travels in the "topic" header so consumers can still split
// notifications from lifecycle events.
func kafkaFactory(producer kafkaWriter) publisherFactory {
	pub := &kafkaPublisher{producer: producer}
	return func(string) publisher {
		return pub
	}
}

type kafkaPublisher struct {
	producer kafkaWriter
}

func (p *kafkaPublisher) Publish(ctx context.Context, msg outboundMessage) publishResult {
	return kafkaResult{err: p.producer.Publish(ctx, msg.Key, msg.Data, msg.Attributes)}
}

// kafkaResult wraps the already-acknowledged synchronous write.
type kafkaResult struct {
	err error
}

func (r kafkaResult) Get(context.Context) (string, error) {
	return "", r.err
}
