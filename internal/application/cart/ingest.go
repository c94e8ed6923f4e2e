package cart

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/shared"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/infrastructure/messaging"
	"github.com/biblioteca/backend/internal/infrastructure/telemetry"
)

// Reasons an event is dropped without a reply
const (
	DropMalformedTopic   = "malformed_topic"
	DropMalformedPayload = "malformed_payload"
	DropPublishFailed    = "publish_failed"
)

// RetryConfig bounds retries of transient store failures on the async path
type RetryConfig struct {
	MaxRetries int
	MaxElapsed time.Duration
}

// Ingestor consumes tag reads from the transport and answers each one on the
// session's book-info or error topic.
type Ingestor struct {
	ledger    *Ledger
	transport messaging.Transport
	metrics   *telemetry.CartMetrics
	retry     RetryConfig
	clock     shared.Clock
	logger    *zap.Logger
}

// NewIngestor creates a new Ingestor. metrics may be nil.
func NewIngestor(
	ledger *Ledger,
	transport messaging.Transport,
	metrics *telemetry.CartMetrics,
	retry RetryConfig,
	clock shared.Clock,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		ledger:    ledger,
		transport: transport,
		metrics:   metrics,
		retry:     retry,
		clock:     clock,
		logger:    logger,
	}
}

// Start subscribes to tag reads of every session
func (i *Ingestor) Start(ctx context.Context) error {
	if err := i.transport.Subscribe(ctx, messaging.TagReadPattern, i.HandleMessage); err != nil {
		return err
	}
	i.logger.Info("Listening for tag reads", zap.String("pattern", messaging.TagReadPattern))
	return nil
}

// HandleMessage processes one tag read. It never panics and never returns an
// error; every outcome is either a reply on the session's topics or a log line.
func (i *Ingestor) HandleMessage(ctx context.Context, msg messaging.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Recovered from panic while handling tag read",
				zap.String("topic", msg.Topic),
				zap.Any("panic", r),
			)
		}
		i.metrics.RecordIngestDuration(ctx, time.Since(start))
	}()

	sessionID, channel, ok := messaging.ParseSessionTopic(msg.Topic)
	if !ok || channel != messaging.ChannelTagRead {
		i.logger.Warn("Dropping tag read on malformed topic", zap.String("topic", msg.Topic))
		i.metrics.RecordEventDropped(ctx, DropMalformedTopic)
		return
	}

	ctx = logger.WithSession(ctx, sessionID, "")
	log := logger.Enrich(ctx, i.logger)

	event, err := DecodeTagRead(msg.Payload)
	if err != nil {
		log.Warn("Malformed tag read payload", zap.ByteString("payload", msg.Payload), zap.Error(err))
		i.metrics.RecordEventDropped(ctx, DropMalformedPayload)
		i.publishError(ctx, sessionID, "", err)
		return
	}

	result, err := i.addWithRetry(ctx, sessionID, event.TagID)
	if err != nil {
		log.Info("Tag read rejected",
			zap.String("rfid_tag", event.TagID),
			zap.String("code", ErrorCode(err)),
			zap.Error(err),
		)
		i.metrics.RecordRejection(ctx, ErrorCode(err))
		i.publishError(ctx, sessionID, event.TagID, err)
		return
	}

	if result.Added {
		i.metrics.RecordLineAdded(ctx, telemetry.SourceTransport)
	} else {
		i.metrics.RecordDuplicateRead(ctx, telemetry.SourceTransport)
	}
	i.publish(ctx, sessionID, messaging.ChannelBookInfo, BookInfoNotification{
		Status: "success",
		Title:  result.Book.Title,
		TagID:  result.Book.TagID,
		Added:  result.Added,
	})
}

// PublishControl sends a control action to the session's kiosk
func (i *Ingestor) PublishControl(ctx context.Context, sessionID, action string) error {
	payload, err := encode(ControlMessage{Action: action, Timestamp: i.clock.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return i.transport.Publish(ctx, messaging.SessionTopic(sessionID, messaging.ChannelControl), payload)
}

func (i *Ingestor) addWithRetry(ctx context.Context, sessionID, tagID string) (*AddResult, error) {
	var result *AddResult
	operation := func() error {
		r, err := i.ledger.AddLine(ctx, sessionID, tagID)
		if err != nil {
			if errors.Is(err, shared.ErrTransientStore) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = i.retry.MaxElapsed

	retries := max(i.retry.MaxRetries, 0)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		i.logger.Debug("Retrying tag read after transient failure",
			zap.String("session_id", sessionID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	return result, err
}

func (i *Ingestor) publishError(ctx context.Context, sessionID, tagID string, cause error) {
	message := "internal error"
	var domainErr *shared.DomainError
	if errors.As(cause, &domainErr) {
		message = domainErr.Message
	}
	i.publish(ctx, sessionID, messaging.ChannelError, ErrorNotification{
		Error: message,
		Code:  ErrorCode(cause),
		TagID: tagID,
	})
}

func (i *Ingestor) publish(ctx context.Context, sessionID, channel string, v any) {
	payload, err := encode(v)
	if err == nil {
		err = i.transport.Publish(ctx, messaging.SessionTopic(sessionID, channel), payload)
	}
	if err != nil {
		i.logger.Warn("Failed to publish cart notification",
			zap.String("session_id", sessionID),
			zap.String("channel", channel),
			zap.Error(err),
		)
		i.metrics.RecordEventDropped(ctx, DropPublishFailed)
	}
}

var _ ControlPublisher = (*Ingestor)(nil)
