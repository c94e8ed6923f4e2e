package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	apploan "github.com/biblioteca/backend/internal/application/loan"
	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/infrastructure/messaging"
	"github.com/biblioteca/backend/internal/infrastructure/persistence"
	"github.com/biblioteca/backend/internal/infrastructure/persistence/models"
	"github.com/biblioteca/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const sessionTTL = 10 * time.Minute

// testStack is the cart and loan API over an in-memory SQLite database
type testStack struct {
	engine    *gin.Engine
	db        *gorm.DB
	transport *messaging.InMemoryTransport
	books     *persistence.GormBookRepository
	borrowers *persistence.GormBorrowerRepository
	loans     *persistence.GormLoanRepository

	mu       sync.Mutex
	now      time.Time
	controls []string
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	s := &testStack{
		db:        db,
		transport: messaging.NewInMemoryTransport(zap.NewNop()),
		books:     persistence.NewGormBookRepository(db),
		borrowers: persistence.NewGormBorrowerRepository(db),
		loans:     persistence.NewGormLoanRepository(db),
		now:       baseTime,
	}
	clock := shared.ClockFunc(s.clockNow)
	log := zap.NewNop()

	sessions := appcart.NewSessionRegistry(sessionTTL, clock)
	lines := persistence.NewGormCartLineRepository(db)
	guard := appcart.NewLimitGuard(s.borrowers, s.loans, circulation.NewLimitPolicy(circulation.DefaultMaxItems), clock)
	locks := appcart.NewKeyedLocker()
	ledger := appcart.NewLedger(sessions, lines, s.books, guard, locks,
		appcart.WithStoreTimeout(time.Second),
		appcart.WithLedgerClock(clock),
	)
	ingestor := appcart.NewIngestor(ledger, s.transport, nil, appcart.RetryConfig{}, clock, log)
	finalizer := appcart.NewFinalizer(sessions, lines, guard, persistence.NewGormTransactionScope(db), locks,
		ingestor, clock, appcart.FinalizerConfig{LoanPeriod: circulation.DefaultLoanPeriod, StoreTimeout: time.Second}, log)
	cartService := appcart.NewService(sessions, ledger, finalizer, ingestor, nil, appcart.ServiceConfig{}, log)
	loanService := apploan.NewService(s.loans, persistence.NewGormLoanTransactionScope(db), clock, circulation.DefaultLoanPeriod, log)

	ctx := context.Background()
	require.NoError(t, ingestor.Start(ctx))
	require.NoError(t, s.transport.Subscribe(ctx, messaging.TopicRoot+"/+/"+messaging.ChannelControl, s.recordControl))

	s.engine = gin.New()
	s.engine.Use(middleware.RequestID(), logger.GinMiddleware(log))
	api := s.engine.Group("/api/v1")
	NewCartHandler(cartService, sessionTTL).RegisterRoutes(api)
	NewLoanHandler(loanService).RegisterRoutes(api)

	s.seed(t)
	return s
}

func (s *testStack) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, b := range []*circulation.Book{
		circulation.NewBook("TAG-A", "Dom Casmurro", "Machado de Assis", baseTime),
		circulation.NewBook("TAG-B", "Iracema", "José de Alencar", baseTime),
		circulation.NewBook("TAG-C", "O Cortiço", "Aluísio Azevedo", baseTime),
		circulation.NewBook("TAG-D", "Memórias Póstumas", "Machado de Assis", baseTime),
	} {
		require.NoError(t, s.books.Save(ctx, b))
	}
	maintenance := circulation.NewBook("TAG-M", "Grande Sertão", "Guimarães Rosa", baseTime)
	maintenance.Status = circulation.BookStatusMaintenance
	require.NoError(t, s.books.Save(ctx, maintenance))

	require.NoError(t, s.borrowers.Save(ctx, &circulation.Borrower{
		ID: "2024001", Name: "Ana", CreatedAt: baseTime, UpdatedAt: baseTime,
	}))
}

func (s *testStack) clockNow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// advance moves the fixed clock forward
func (s *testStack) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *testStack) recordControl(_ context.Context, msg messaging.Message) {
	var control appcart.ControlMessage
	if err := json.Unmarshal(msg.Payload, &control); err != nil {
		return
	}
	sessionID, _, _ := messaging.ParseSessionTopic(msg.Topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = append(s.controls, sessionID+":"+control.Action)
}

func (s *testStack) controlMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.controls...)
}

// do sends a request with an optional JSON body
func (s *testStack) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// startSession opens a session for borrowerID and returns it
func (s *testStack) startSession(t *testing.T, borrowerID string) SessionResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/cart/sessions", gin.H{"borrower_id": borrowerID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[SessionResponse](t, w)
}

func (s *testStack) addLine(t *testing.T, sessionID, tag string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/lines", gin.H{"rfid_tag": tag})
}

// envelope mirrors dto.Response with a typed payload
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	env := decode[T](t, w)
	require.True(t, env.Success, w.Body.String())
	return env.Data
}

// errorCode returns the error code of a failed response
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode[json.RawMessage](t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}
