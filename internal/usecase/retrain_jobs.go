package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	domrepo "LedgerCast/internal/domain/repository"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/queue"
)

// RetrainMessageType identifies forecast retrain messages on the queue.
const RetrainMessageType = "forecast.retrain"

// RetrainPayload is the queued retrain request.
type RetrainPayload struct {
	OrgID      string `json:"org_id"`
	MonthsBack int    `json:"months_back"`
}

// RetrainJob consumes retrain messages and retrains the organization's
// forecast model.
type RetrainJob struct {
	forecaster *Forecaster
	logger     *applogger.Logger
}

func NewRetrainJob(forecaster *Forecaster, logger *applogger.Logger) *RetrainJob {
	return &RetrainJob{forecaster: forecaster, logger: logger}
}

var _ queue.Job = (*RetrainJob)(nil)

func (j *RetrainJob) Name() string { return "forecast-retrain" }
func (j *RetrainJob) Type() string { return RetrainMessageType }

// Handle retrains one organization. A concurrent trainer already holding
// the lock is not an error worth retrying: the other run will produce an
// equally fresh model.
func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RetrainPayload](payload)
	if err != nil {
		return err
	}

	res, err := j.forecaster.Train(ctx, p.OrgID, p.MonthsBack)
	if errors.Is(err, ErrTrainingInProgress) {
		j.logger.Debug("retrain skipped, training in progress", applogger.String("org_id", p.OrgID))
		return nil
	}
	if err != nil {
		return err
	}
	if !res.Success {
		j.logger.Info("retrain produced no model",
			applogger.String("org_id", p.OrgID),
			applogger.String("reason", res.Reason))
	}
	return nil
}

// RetrainScheduler periodically enqueues retrain messages for every
// organization with recent ledger activity.
type RetrainScheduler struct {
	ledger   domrepo.LedgerStore
	producer queue.QueueService
	logger   *applogger.Logger

	interval   time.Duration
	lookback   time.Duration
	monthsBack int
	stopCh     chan struct{}
	stopOnce   sync.Once
}

func NewRetrainScheduler(ledger domrepo.LedgerStore, producer queue.QueueService, logger *applogger.Logger, interval, lookback time.Duration, monthsBack int) *RetrainScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	return &RetrainScheduler{
		ledger:     ledger,
		producer:   producer,
		logger:     logger,
		interval:   interval,
		lookback:   lookback,
		monthsBack: monthsBack,
		stopCh:     make(chan struct{}),
	}
}

// Start blocks until Stop or context cancellation; run it in a goroutine.
func (s *RetrainScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.enqueueAll(ctx)
		}
	}
}

// Stop is safe to call from any number of goroutines.
func (s *RetrainScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *RetrainScheduler) enqueueAll(ctx context.Context) {
	orgs, err := s.ledger.ActiveOrgIDs(ctx, time.Now().UTC().Add(-s.lookback))
	if err != nil {
		s.logger.Error("active organizations not listed", applogger.Error(err))
		return
	}
	for _, orgID := range orgs {
		payload := RetrainPayload{OrgID: orgID, MonthsBack: s.monthsBack}
		if err := s.producer.PublishMessage(ctx, RetrainMessageType, payload); err != nil {
			s.logger.Error("retrain not enqueued", applogger.String("org_id", orgID), applogger.Error(err))
			continue
		}
	}
	if len(orgs) > 0 {
		s.logger.Info("retrain sweep enqueued", applogger.Int("organizations", len(orgs)))
	}
}
