package repository

import (
	"context"
	"errors"
	"fmt"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	pkghttp "LedgerCast/pkg/http"
	pkgkafka "LedgerCast/pkg/kafka"
)

// KafkaAlertPublisher pushes anomaly alerts onto a Kafka topic, keyed by
// organization so one org's alerts stay ordered.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)

func (p *KafkaAlertPublisher) Publish(ctx context.Context, a models.AnomalyResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.OrgID), a)
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// WebhookAlertPublisher POSTs each alert to a configured endpoint. Meant
// for integrations that cannot consume the Kafka topic directly.
type WebhookAlertPublisher struct {
	client *pkghttp.Client
	url    string
	token  string
}

func NewWebhookAlertPublisher(client *pkghttp.Client, url, token string) *WebhookAlertPublisher {
	return &WebhookAlertPublisher{client: client, url: url, token: token}
}

var _ domrepo.AlertPublisher = (*WebhookAlertPublisher)(nil)

func (p *WebhookAlertPublisher) Publish(ctx context.Context, a models.AnomalyResult) error {
	headers := map[string]string{"Content-Type": "application/json"}
	if p.token != "" {
		headers["Authorization"] = "Bearer " + p.token
	}
	err := p.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     p.url,
		Headers: headers,
		Body:    a,
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook alert: %w", err)
	}
	return nil
}

func (p *WebhookAlertPublisher) Close() error { return nil }

// MultiAlertPublisher fans one alert out to every configured sink. All
// sinks are attempted; errors are joined.
type MultiAlertPublisher struct {
	sinks []domrepo.AlertPublisher
}

func NewMultiAlertPublisher(sinks ...domrepo.AlertPublisher) *MultiAlertPublisher {
	return &MultiAlertPublisher{sinks: sinks}
}

var _ domrepo.AlertPublisher = (*MultiAlertPublisher)(nil)

func (p *MultiAlertPublisher) Publish(ctx context.Context, a models.AnomalyResult) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MultiAlertPublisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
