// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/adapter"
	"petcare-billing/internal/domain/ports/repository"
	"petcare-billing/internal/infra/worker"
)

// ---- In-memory profile repository ----

type MockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	writes   int

	FindErr     error
	ActivateErr error
	// ActivateRows overrides the rows-affected count when >= 0.
	ActivateRows int64
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func NewMockProfileRepo() *MockProfileRepo {
	return &MockProfileRepo{profiles: map[string]*model.Profile{}, ActivateRows: -1}
}

func (m *MockProfileRepo) Seed(id string) *model.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Profile{
		ID:                 id,
		SubscriptionStatus: model.SubscriptionStatusPendingPayment,
		UpdatedAt:          time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond),
	}
	m.profiles[id] = p
	cp := *p
	return &cp
}

func (m *MockProfileRepo) Get(id string) *model.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *MockProfileRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockProfileRepo) FindByID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProfileRepo) Activate(ctx context.Context, tx repository.Tx, a model.ProfileActivation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ActivateErr != nil {
		return 0, m.ActivateErr
	}
	if m.ActivateRows >= 0 {
		return m.ActivateRows, nil
	}
	p, ok := m.profiles[a.UserID]
	if !ok || !p.UpdatedAt.Equal(a.ExpectedUpdatedAt) {
		return 0, nil
	}
	ends := a.EndsAt
	p.SubscriptionStatus = model.SubscriptionStatusActive
	p.Plan = a.Plan
	p.SubscriptionEndsAt = &ends
	p.UpdatedAt = a.UpdatedAt
	m.writes++
	return 1, nil
}

// ---- In-memory ledger repository (enforces the paid-family unique key) ----

type MockPaymentRecordRepo struct {
	mu      sync.Mutex
	records map[string]*model.PaymentRecord
	order   []string

	InsertErr   error
	AnnotateErr error
	// FailAnnotateStatus makes Annotate fail only for this status.
	FailAnnotateStatus model.PaymentStatus
}

var _ repository.PaymentRecordRepository = (*MockPaymentRecordRepo)(nil)

func NewMockPaymentRecordRepo() *MockPaymentRecordRepo {
	return &MockPaymentRecordRepo{records: map[string]*model.PaymentRecord{}}
}

func (m *MockPaymentRecordRepo) All() []*model.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PaymentRecord, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.records[id]
		out = append(out, &cp)
	}
	return out
}

func (m *MockPaymentRecordRepo) Insert(ctx context.Context, tx repository.Tx, r *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if r.Status.IsPaidFamily() && r.GatewayPaymentID != nil {
		for _, ex := range m.records {
			if ex.Status.IsPaidFamily() && ex.GatewayPaymentID != nil && *ex.GatewayPaymentID == *r.GatewayPaymentID {
				return domain.ErrAlreadyExists
			}
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	m.records[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return nil
}

func (m *MockPaymentRecordRepo) Annotate(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, details model.ErrorDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnnotateErr != nil || (m.FailAnnotateStatus != "" && m.FailAnnotateStatus == status) {
		return errors.New("annotate failed")
	}
	r, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	if len(details) > 0 {
		if r.ErrorDetails == nil {
			r.ErrorDetails = model.ErrorDetails{}
		}
		for k, v := range details {
			r.ErrorDetails[k] = v
		}
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MockPaymentRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockPaymentRecordRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		r := m.records[id]
		if r.Status.IsPaidFamily() && r.GatewayPaymentID != nil && *r.GatewayPaymentID == paymentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRecordRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, id := range m.order {
		r := m.records[id]
		if r.Status == status && r.UpdatedAt.Before(olderThan) && r.ReconcileAttempts() < model.MaxReconcileAttempts {
			cp := *r
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Gateway ----

type MockPaymentGateway struct {
	CreateOrderFunc func(ctx context.Context, params model.GatewayOrderParams) (*model.GatewayOrder, error)
	Secret          string
	calls           []model.GatewayOrderParams
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, params model.GatewayOrderParams) (*model.GatewayOrder, error) {
	g.calls = append(g.calls, params)
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, params)
	}
	return &model.GatewayOrder{ID: "order_mock", Status: "created", Raw: []byte(`{"id":"order_mock"}`)}, nil
}

func (g *MockPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == g.ExpectedSignature(orderID, paymentID)
}

func (g *MockPaymentGateway) ExpectedSignature(orderID, paymentID string) string {
	return "sig:" + g.Secret + ":" + orderID + "|" + paymentID
}

// ---- In-flight guard ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	Err  error
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrDuplicateInFlight
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}

// ---- Rate limiter ----

type MockLimiter struct {
	Allowed bool
	Err     error
	Keys    []string
}

func (m *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.Keys = append(m.Keys, key)
	return m.Allowed, m.Err
}

// ---- Alerts ----

type MockNotifier struct {
	mu     sync.Mutex
	Alerts []adapter.Alert
	Err    error
}

func (n *MockNotifier) Notify(ctx context.Context, a adapter.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Alerts = append(n.Alerts, a)
	return n.Err
}

// syncSubmitter runs tasks inline so tests can assert on their effects.
type syncSubmitter struct{}

func (syncSubmitter) Submit(task worker.Task) error {
	_ = task(context.Background())
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
