package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
	"github.com/biblioteca/backend/internal/infrastructure/messaging"
	"github.com/biblioteca/backend/internal/infrastructure/telemetry"
)

// inbox collects replies published on one channel
type inbox struct {
	mu       sync.Mutex
	messages []messaging.Message
}

func (b *inbox) handle(_ context.Context, msg messaging.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *inbox) all() []messaging.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]messaging.Message(nil), b.messages...)
}

type ingestFixture struct {
	*fixture
	transport *messaging.InMemoryTransport
	ingestor  *Ingestor
	bookInfo  *inbox
	errors    *inbox
	control   *inbox
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := newFixture()
	transport := messaging.NewInMemoryTransport(zap.NewNop())

	metrics, err := telemetry.NewCartMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ingestor := NewIngestor(f.ledger, transport, metrics,
		RetryConfig{MaxRetries: 3, MaxElapsed: time.Second}, f.clock, zap.NewNop())
	require.NoError(t, ingestor.Start(context.Background()))

	fx := &ingestFixture{
		fixture:   f,
		transport: transport,
		ingestor:  ingestor,
		bookInfo:  &inbox{},
		errors:    &inbox{},
		control:   &inbox{},
	}
	ctx := context.Background()
	require.NoError(t, transport.Subscribe(ctx, messaging.TopicRoot+"/+/"+messaging.ChannelBookInfo, fx.bookInfo.handle))
	require.NoError(t, transport.Subscribe(ctx, messaging.TopicRoot+"/+/"+messaging.ChannelError, fx.errors.handle))
	require.NoError(t, transport.Subscribe(ctx, messaging.TopicRoot+"/+/"+messaging.ChannelControl, fx.control.handle))
	return fx
}

func (fx *ingestFixture) publishRead(t *testing.T, sessionID, payload string) {
	t.Helper()
	topic := messaging.SessionTopic(sessionID, messaging.ChannelTagRead)
	require.NoError(t, fx.transport.Publish(context.Background(), topic, []byte(payload)))
}

func TestIngestor_TagRead(t *testing.T) {
	fx := newIngestFixture(t)
	session := fx.start("2024001")

	fx.publishRead(t, session.ID, `{"rfid_tag":"TAG-A"}`)
	fx.publishRead(t, session.ID, `{"rfid_tag":"TAG-A"}`)

	replies := fx.bookInfo.all()
	require.Len(t, replies, 2)
	assert.Equal(t, messaging.SessionTopic(session.ID, messaging.ChannelBookInfo), replies[0].Topic)

	var first, second BookInfoNotification
	require.NoError(t, tagJSON.Unmarshal(replies[0].Payload, &first))
	require.NoError(t, tagJSON.Unmarshal(replies[1].Payload, &second))
	assert.Equal(t, BookInfoNotification{Status: "success", Title: "Dom Casmurro", TagID: "TAG-A", Added: true}, first)
	assert.False(t, second.Added)

	assert.Empty(t, fx.errors.all())
	assert.Len(t, fx.lines.all(), 1)
}

func TestIngestor_Rejection(t *testing.T) {
	fx := newIngestFixture(t)
	session := fx.start("2024001")

	fx.publishRead(t, session.ID, `{"rfid_tag":"UNKNOWN"}`)

	replies := fx.errors.all()
	require.Len(t, replies, 1)
	var reply ErrorNotification
	require.NoError(t, tagJSON.Unmarshal(replies[0].Payload, &reply))
	assert.Equal(t, circulation.ErrTagNotFound.Code, reply.Code)
	assert.Equal(t, "UNKNOWN", reply.TagID)
	assert.NotEmpty(t, reply.Error)
	assert.Empty(t, fx.bookInfo.all())
}

func TestIngestor_LimitRejection(t *testing.T) {
	fx := newIngestFixture(t)
	session := fx.start("2024001")

	for _, tag := range []string{"TAG-A", "TAG-B", "TAG-C", "TAG-D"} {
		fx.publishRead(t, session.ID, `{"rfid_tag":"`+tag+`"}`)
	}

	assert.Len(t, fx.bookInfo.all(), 3)
	replies := fx.errors.all()
	require.Len(t, replies, 1)
	assert.Contains(t, string(replies[0].Payload), circulation.ErrLoanLimitExceeded.Code)
}

func TestIngestor_MalformedInput(t *testing.T) {
	t.Run("bad payload with a session publishes invalid input", func(t *testing.T) {
		fx := newIngestFixture(t)
		session := fx.start("2024001")

		fx.publishRead(t, session.ID, `not json`)
		fx.publishRead(t, session.ID, `{"rfid_tag":""}`)
		fx.publishRead(t, session.ID, `{"rfid_tag":"TAG-A","extra":1}`)

		replies := fx.errors.all()
		require.Len(t, replies, 3)
		for _, reply := range replies {
			var n ErrorNotification
			require.NoError(t, tagJSON.Unmarshal(reply.Payload, &n))
			assert.Equal(t, shared.ErrInvalidInput.Code, n.Code)
		}
		assert.Empty(t, fx.lines.all())
	})

	t.Run("malformed topic is dropped", func(t *testing.T) {
		fx := newIngestFixture(t)
		fx.start("2024001")

		fx.ingestor.HandleMessage(context.Background(), messaging.Message{
			Topic:   "biblioteca/carrinho/rfid",
			Payload: []byte(`{"rfid_tag":"TAG-A"}`),
		})

		assert.Empty(t, fx.errors.all())
		assert.Empty(t, fx.bookInfo.all())
		assert.Empty(t, fx.lines.all())
	})

	t.Run("later events are unaffected", func(t *testing.T) {
		fx := newIngestFixture(t)
		session := fx.start("2024001")

		fx.publishRead(t, session.ID, `{`)
		fx.publishRead(t, session.ID, `{"rfid_tag":"TAG-B"}`)

		assert.Len(t, fx.bookInfo.all(), 1)
		assert.Len(t, fx.lines.all(), 1)
	})
}

// flakyBookRepo fails with a transient error a fixed number of times
type flakyBookRepo struct {
	*memBookRepo
	failures atomic.Int32
}

func (r *flakyBookRepo) FindByTag(ctx context.Context, tagID string) (*circulation.Book, error) {
	if r.failures.Add(-1) >= 0 {
		return nil, shared.ErrTransientStore
	}
	return r.memBookRepo.FindByTag(ctx, tagID)
}

func TestIngestor_RetriesTransientFailures(t *testing.T) {
	f := newFixture()
	flaky := &flakyBookRepo{memBookRepo: f.books}
	flaky.failures.Store(2)
	ledger := NewLedger(f.sessions, f.lines, flaky, f.guard, NewKeyedLocker(), WithLedgerClock(f.clock))

	transport := messaging.NewInMemoryTransport(zap.NewNop())
	ingestor := NewIngestor(ledger, transport, nil,
		RetryConfig{MaxRetries: 3, MaxElapsed: time.Second}, f.clock, zap.NewNop())
	require.NoError(t, ingestor.Start(context.Background()))
	replies := &inbox{}
	require.NoError(t, transport.Subscribe(context.Background(), messaging.TopicRoot+"/+/#", replies.handle))

	session := f.start("2024001")
	require.NoError(t, transport.Publish(context.Background(),
		messaging.SessionTopic(session.ID, messaging.ChannelTagRead), []byte(`{"rfid_tag":"TAG-A"}`)))

	assert.Len(t, f.lines.all(), 1)
	var sawBookInfo bool
	for _, msg := range replies.all() {
		if msg.Topic == messaging.SessionTopic(session.ID, messaging.ChannelBookInfo) {
			sawBookInfo = true
		}
	}
	assert.True(t, sawBookInfo)
}

func TestIngestor_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture()
	flaky := &flakyBookRepo{memBookRepo: f.books}
	flaky.failures.Store(100)
	ledger := NewLedger(f.sessions, f.lines, flaky, f.guard, NewKeyedLocker(), WithLedgerClock(f.clock))

	transport := messaging.NewInMemoryTransport(zap.NewNop())
	ingestor := NewIngestor(ledger, transport, nil,
		RetryConfig{MaxRetries: 2, MaxElapsed: time.Second}, f.clock, zap.NewNop())
	require.NoError(t, ingestor.Start(context.Background()))
	errorsInbox := &inbox{}
	require.NoError(t, transport.Subscribe(context.Background(), messaging.TopicRoot+"/+/"+messaging.ChannelError, errorsInbox.handle))

	session := f.start("2024001")
	require.NoError(t, transport.Publish(context.Background(),
		messaging.SessionTopic(session.ID, messaging.ChannelTagRead), []byte(`{"rfid_tag":"TAG-A"}`)))

	replies := errorsInbox.all()
	require.Len(t, replies, 1)
	assert.Contains(t, string(replies[0].Payload), shared.ErrTransientStore.Code)
	assert.Equal(t, int32(100-3), flaky.failures.Load())
}

func TestIngestor_PublishControl(t *testing.T) {
	fx := newIngestFixture(t)

	require.NoError(t, fx.ingestor.PublishControl(context.Background(), "s1", ActionFinalized))

	replies := fx.control.all()
	require.Len(t, replies, 1)
	assert.Equal(t, messaging.SessionTopic("s1", messaging.ChannelControl), replies[0].Topic)

	var msg ControlMessage
	require.NoError(t, tagJSON.Unmarshal(replies[0].Payload, &msg))
	assert.Equal(t, ActionFinalized, msg.Action)
	assert.Equal(t, baseTime.UnixMilli(), msg.Timestamp)
}

func TestIngestor_PublishAfterClose(t *testing.T) {
	fx := newIngestFixture(t)
	require.NoError(t, fx.transport.Close())

	err := fx.ingestor.PublishControl(context.Background(), "s1", ActionCancelled)
	assert.ErrorIs(t, err, messaging.ErrTransportClosed)
}
