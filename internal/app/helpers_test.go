package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/payoutclient"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type kycStub struct {
	mu    sync.Mutex
	tiers map[uuid.UUID]domain.KYCTier
	err   error
}

func (k *kycStub) Tier(ctx context.Context, accountID uuid.UUID) (domain.KYCTier, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return "", k.err
	}
	if tier, ok := k.tiers[accountID]; ok {
		return tier, nil
	}
	return domain.KYCTierNone, nil
}

func (k *kycStub) set(accountID uuid.UUID, tier domain.KYCTier) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tiers[accountID] = tier
}

type payoutStub struct {
	mu       sync.Mutex
	err      error
	requests []payoutclient.PayoutRequest
}

func (p *payoutStub) RequestPayout(ctx context.Context, req payoutclient.PayoutRequest) (*payoutclient.PayoutResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &payoutclient.PayoutResponse{Reference: "po_" + req.TransactionID.String()[:8], Status: "processing"}, nil
}

type harness struct {
	clock    *testClock
	ledger   *store.MemoryLedger
	kyc      *kycStub
	payouts  *payoutStub
	events   *Events
	treasury *TreasuryService
	monitor  *AnomalyMonitor
	wallet   *WalletService
	draws    *DrawEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, DefaultMonitorConfig())
}

func newHarnessWithConfig(t *testing.T, cfg MonitorConfig) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()
	ledger := store.NewMemoryLedger(store.WithMemoryClock(clock.Now))
	events := NewEvents(nil, "sup.events", logger)

	treasury := NewTreasuryService(ledger, events, logger)
	treasury.now = clock.Now
	if err := treasury.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap treasury: %v", err)
	}

	monitor := NewAnomalyMonitor(ledger, treasury, NewMemoryVelocityCounter(), events, cfg, logger)
	monitor.now = clock.Now
	events.Subscribe(monitor)

	kyc := &kycStub{tiers: make(map[uuid.UUID]domain.KYCTier)}
	payouts := &payoutStub{}
	wallet := NewWalletService(ledger, &LimitPolicy{now: clock.Now}, kyc, payouts, monitor, events, logger)
	wallet.now = clock.Now

	draws := NewDrawEngine(wallet, ledger, events, logger)
	draws.now = clock.Now

	return &harness{
		clock:    clock,
		ledger:   ledger,
		kyc:      kyc,
		payouts:  payouts,
		events:   events,
		treasury: treasury,
		monitor:  monitor,
		wallet:   wallet,
		draws:    draws,
	}
}

func sup(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}

func decimalFrom(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

// fund opens an account at tier and buys ngn worth of SUP for it.
func (h *harness) fund(t *testing.T, tier domain.KYCTier, ngn string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	h.kyc.set(id, tier)
	if _, err := h.wallet.Buy(context.Background(), BuyRequest{AccountID: id, AmountNGN: sup(t, ngn), PaymentReference: "fund_" + id.String()}); err != nil {
		t.Fatalf("fund account: %v", err)
	}
	return id
}

func (h *harness) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := h.wallet.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.SUPBalance
}

func (h *harness) history(t *testing.T, id uuid.UUID) []domain.Transaction {
	t.Helper()
	var out []domain.Transaction
	for entry, err := range h.wallet.History(context.Background(), id, domain.HistoryFilter{}) {
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		out = append(out, entry)
	}
	return out
}

// assertBalanceMatchesEntries checks the cached balance against the sum of effective entries.
func (h *harness) assertBalanceMatchesEntries(t *testing.T, id uuid.UUID) {
	t.Helper()
	computed := decimal.Zero
	for _, entry := range h.history(t, id) {
		if entry.Effective() {
			computed = computed.Add(entry.AmountSUP)
		}
	}
	if got := h.balance(t, id); !got.Equal(computed) {
		t.Fatalf("balance %s does not match entries %s", got, computed)
	}
}

// creditOperating seeds the operating sub-account directly through the ledger.
func (h *harness) creditOperating(t *testing.T, amount string) {
	t.Helper()
	id := domain.SubAccountOperating.ID()
	err := h.ledger.WithAccounts(context.Background(), []uuid.UUID{id}, func(ctx context.Context, tx store.LedgerTx) error {
		_, err := tx.Append(ctx, domain.Transaction{
			AccountID: id,
			Type:      domain.TypeAdminTransfer,
			AmountSUP: sup(t, amount),
			Status:    domain.StatusCompleted,
		})
		return err
	})
	if err != nil {
		t.Fatalf("credit operating: %v", err)
	}
}

func (h *harness) alerts(t *testing.T, alertType domain.AlertType) []domain.SecurityAlert {
	t.Helper()
	alerts, err := h.monitor.ListAlerts(context.Background(), domain.AlertFilter{Type: alertType})
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	return alerts
}
