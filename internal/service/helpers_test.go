package service

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"go-pos-admin/internal/cache"
	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/lock"
	"go-pos-admin/internal/metrics"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/testutil"
	"go-pos-admin/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Type   string
	Fields map[string]any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Publish(eventType string, fields map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: eventType, Fields: fields})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type saleFixture struct {
	db       *gorm.DB
	svc      SaleService
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	logs     *bytes.Buffer
	actor    Actor
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	notifier := &recordingNotifier{}
	logs := &bytes.Buffer{}
	m := metrics.New(prometheus.NewRegistry())

	svc := NewSaleService(db, SaleDeps{
		Products:     repository.NewProductRepo(db),
		Customers:    repository.NewCustomerRepo(db),
		Transactions: repository.NewTransactionRepo(db),
		Refunds:      repository.NewRefundRepo(db),
		Pricer:       ledger.NewPricer(decimal.RequireFromString("0.11")),
		Locker:       lock.NewLocalLocker(),
		LockTTL:      time.Second,
		Cache:        cache.New(nil, 0),
		Notifier:     notifier,
		Metrics:      m,
		Log:          logger.New(logger.Options{ServiceName: "test", Output: &lockedWriter{buf: logs}}),
		StoreTimeout: 5 * time.Second,
	})
	cashier := testutil.SeedUser(t, db, "cashier@pos.test", "secret1", model.RoleCashier)
	return &saleFixture{
		db:       db,
		svc:      svc,
		notifier: notifier,
		metrics:  m,
		logs:     logs,
		actor:    Actor{ID: cashier.ID, Name: cashier.FullName, Email: cashier.Email},
	}
}

type lockedWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func cents(v int64) *int64 { return &v }
