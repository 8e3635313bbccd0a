package store

import (
	"bytes"
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

// MemoryLedger is an in-process Ledger used by tests and STORE_DRIVER=memory.
// A unit of work holds the controls lock shared, the account mutexes in id
// order and any round mutexes it asked for; its writes are staged and only
// applied on success.
type MemoryLedger struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*domain.Account
	txs       map[uuid.UUID]*domain.Transaction
	byAccount map[uuid.UUID][]uuid.UUID
	rounds    map[uuid.UUID]*domain.PrizeRound
	alerts    []*domain.SecurityAlert
	audit     []domain.AuditEntry

	controlsMu sync.RWMutex
	controls   domain.TreasuryControls

	locksMu      sync.Mutex
	accountLocks map[uuid.UUID]*sync.Mutex
	roundLocks   map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

// MemoryOption configures a MemoryLedger.
type MemoryOption func(*MemoryLedger)

// WithMemoryClock overrides the clock used for timestamps the caller did not set.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLedger) { l.now = now }
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger(opts ...MemoryOption) *MemoryLedger {
	l := &MemoryLedger{
		accounts:     make(map[uuid.UUID]*domain.Account),
		txs:          make(map[uuid.UUID]*domain.Transaction),
		byAccount:    make(map[uuid.UUID][]uuid.UUID),
		rounds:       make(map[uuid.UUID]*domain.PrizeRound),
		accountLocks: make(map[uuid.UUID]*sync.Mutex),
		roundLocks:   make(map[uuid.UUID]*sync.Mutex),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLedger) accountLock(id uuid.UUID) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	m, ok := l.accountLocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.accountLocks[id] = m
	}
	return m
}

func (l *MemoryLedger) roundLock(id uuid.UUID) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	m, ok := l.roundLocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.roundLocks[id] = m
	}
	return m
}

// WithAccounts runs fn under the account locks and commits its staged writes when it returns nil.
func (l *MemoryLedger) WithAccounts(ctx context.Context, accountIDs []uuid.UUID, fn UnitOfWork) error {
	ids := sortedUnique(accountIDs)

	l.controlsMu.RLock()
	defer l.controlsMu.RUnlock()

	for _, id := range ids {
		m := l.accountLock(id)
		m.Lock()
		defer m.Unlock()
	}

	tx := &memTx{
		l:        l,
		controls: l.controls,
		balances: make(map[uuid.UUID]decimal.Decimal, len(ids)),
		statuses: make(map[uuid.UUID]domain.TransactionStatus),
		rounds:   make(map[uuid.UUID]*domain.PrizeRound),
		now:      l.now(),
	}
	defer tx.releaseRounds()

	l.mu.RLock()
	for _, id := range ids {
		acct, ok := l.accounts[id]
		if !ok {
			l.mu.RUnlock()
			return domain.ErrAccountNotFound
		}
		tx.balances[id] = acct.SUPBalance
	}
	l.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

type memTx struct {
	l        *MemoryLedger
	controls domain.TreasuryControls
	balances map[uuid.UUID]decimal.Decimal
	appended []domain.Transaction
	statuses map[uuid.UUID]domain.TransactionStatus
	rounds   map[uuid.UUID]*domain.PrizeRound
	unlocks  []func()
	audit    []domain.AuditEntry
	now      time.Time
}

func (t *memTx) releaseRounds() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.unlocks = nil
}

func (t *memTx) commit() {
	l := t.l
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, balance := range t.balances {
		acct := l.accounts[id]
		if !acct.SUPBalance.Equal(balance) {
			acct.SUPBalance = balance
			acct.UpdatedAt = t.now
		}
	}
	for _, entry := range t.appended {
		stored := cloneTransaction(entry)
		l.txs[stored.ID] = &stored
		l.byAccount[stored.AccountID] = append(l.byAccount[stored.AccountID], stored.ID)
	}
	for id, status := range t.statuses {
		if stored, ok := l.txs[id]; ok {
			stored.Status = status
			stored.UpdatedAt = t.now
		}
	}
	for id, round := range t.rounds {
		stored := cloneRound(*round)
		l.rounds[id] = &stored
	}
	l.audit = append(l.audit, t.audit...)
}

func (t *memTx) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	balance, ok := t.balances[id]
	if !ok {
		return nil, ErrAccountNotLocked
	}
	t.l.mu.RLock()
	acct := *t.l.accounts[id]
	t.l.mu.RUnlock()
	acct.SUPBalance = balance
	return &acct, nil
}

func (t *memTx) Controls() domain.TreasuryControls {
	return t.controls
}

func (t *memTx) Append(ctx context.Context, in domain.Transaction) (*domain.Transaction, error) {
	if err := validateAppend(in); err != nil {
		return nil, err
	}
	return t.stage(in)
}

func (t *memTx) stage(in domain.Transaction) (*domain.Transaction, error) {
	balance, ok := t.balances[in.AccountID]
	if !ok {
		return nil, ErrAccountNotLocked
	}
	next := balance.Add(in.AmountSUP)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}

	entry := cloneTransaction(in)
	entry.ID = uuid.New()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now
	}
	entry.UpdatedAt = entry.CreatedAt
	entry.AmountNGN = domain.SUPToNGN(entry.AmountSUP)

	t.balances[in.AccountID] = next
	t.appended = append(t.appended, entry)
	out := cloneTransaction(entry)
	return &out, nil
}

func (t *memTx) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	for _, entry := range t.appended {
		if entry.ID == id {
			out := cloneTransaction(entry)
			if status, ok := t.statuses[id]; ok {
				out.Status = status
			}
			return &out, nil
		}
	}
	t.l.mu.RLock()
	stored, ok := t.l.txs[id]
	var out domain.Transaction
	if ok {
		out = cloneTransaction(*stored)
	}
	t.l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	if status, ok := t.statuses[id]; ok {
		out.Status = status
	}
	return &out, nil
}

func (t *memTx) lockedTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	current, err := t.Transaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := t.balances[current.AccountID]; !ok {
		return nil, ErrAccountNotLocked
	}
	return current, nil
}

func (t *memTx) SetStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
	current, err := t.lockedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(*current, status); err != nil {
		return nil, err
	}
	t.setStatus(id, status)
	current.Status = status
	current.UpdatedAt = t.now
	return current, nil
}

func (t *memTx) setStatus(id uuid.UUID, status domain.TransactionStatus) {
	for i := range t.appended {
		if t.appended[i].ID == id {
			t.appended[i].Status = status
			t.appended[i].UpdatedAt = t.now
			return
		}
	}
	t.statuses[id] = status
}

func (t *memTx) Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Transaction, error) {
	current, err := t.lockedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkReversible(*current); err != nil {
		return nil, err
	}
	comp, err := t.stage(current.Compensating(reason, actor))
	if err != nil {
		return nil, err
	}
	t.setStatus(id, domain.StatusReversed)
	return comp, nil
}

// entries returns the committed and staged entries of an account with staged statuses applied.
func (t *memTx) entries(accountID uuid.UUID) []domain.Transaction {
	t.l.mu.RLock()
	ids := t.l.byAccount[accountID]
	out := make([]domain.Transaction, 0, len(ids)+len(t.appended))
	for _, id := range ids {
		entry := *t.l.txs[id]
		if status, ok := t.statuses[id]; ok {
			entry.Status = status
		}
		out = append(out, entry)
	}
	t.l.mu.RUnlock()
	for _, entry := range t.appended {
		if entry.AccountID == accountID {
			out = append(out, entry)
		}
	}
	return out
}

func (t *memTx) SumSUP(ctx context.Context, accountID uuid.UUID, q WindowQuery) (decimal.Decimal, error) {
	if _, ok := t.balances[accountID]; !ok {
		return decimal.Zero, ErrAccountNotLocked
	}
	sum := decimal.Zero
	for _, entry := range t.entries(accountID) {
		if !windowMatches(q, entry) {
			continue
		}
		sum = sum.Add(entry.AmountSUP)
	}
	return sum, nil
}

func windowMatches(q WindowQuery, entry domain.Transaction) bool {
	if len(q.Types) > 0 && !domain.ContainsType(q.Types, entry.Type) {
		return false
	}
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = domain.EffectiveStatuses
	}
	if !domain.ContainsStatus(statuses, entry.Status) {
		return false
	}
	return q.Since.IsZero() || !entry.CreatedAt.Before(q.Since)
}

func (t *memTx) HasMeta(ctx context.Context, accountID uuid.UUID, txType domain.TransactionType, key, value string) (bool, error) {
	if _, ok := t.balances[accountID]; !ok {
		return false, ErrAccountNotLocked
	}
	for _, entry := range t.entries(accountID) {
		if entry.Type == txType && entry.ReversalOf == nil && entry.Effective() && entry.Meta[key] == value {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) LockRound(ctx context.Context, roundID uuid.UUID) (*domain.PrizeRound, error) {
	if staged, ok := t.rounds[roundID]; ok {
		out := cloneRound(*staged)
		return &out, nil
	}
	m := t.l.roundLock(roundID)
	m.Lock()

	t.l.mu.RLock()
	stored, ok := t.l.rounds[roundID]
	var staged domain.PrizeRound
	if ok {
		staged = cloneRound(*stored)
	}
	t.l.mu.RUnlock()
	if !ok {
		m.Unlock()
		return nil, domain.ErrRoundNotFound
	}

	t.unlocks = append(t.unlocks, m.Unlock)
	t.rounds[roundID] = &staged
	out := cloneRound(staged)
	return &out, nil
}

func (t *memTx) AddRoundEntry(ctx context.Context, roundID, accountID uuid.UUID, entries int, cost decimal.Decimal) error {
	round, ok := t.rounds[roundID]
	if !ok {
		return ErrRoundNotLocked
	}
	if round.Status != domain.RoundOpen {
		return domain.ErrRoundNotOpen
	}
	found := false
	for i := range round.Entries {
		if round.Entries[i].AccountID == accountID {
			round.Entries[i].EntryCount += entries
			found = true
			break
		}
	}
	if !found {
		round.Entries = append(round.Entries, domain.RoundEntry{AccountID: accountID, EntryCount: entries})
	}
	round.PoolSUP = round.PoolSUP.Add(cost)
	return nil
}

func (t *memTx) CloseRound(ctx context.Context, round domain.PrizeRound) error {
	staged, ok := t.rounds[round.ID]
	if !ok {
		return ErrRoundNotLocked
	}
	if staged.Status == domain.RoundClosed {
		return domain.ErrRoundClosed
	}
	closed := cloneRound(round)
	closed.Status = domain.RoundClosed
	closed.Entries = staged.Entries
	if closed.ClosedAt == nil {
		at := t.now
		closed.ClosedAt = &at
	}
	t.rounds[round.ID] = &closed
	return nil
}

func (t *memTx) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	t.audit = append(t.audit, withAuditDefaults(entry, t.now))
	return nil
}

func withAuditDefaults(entry domain.AuditEntry, now time.Time) domain.AuditEntry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	return entry
}

func (l *MemoryLedger) EnsureAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	if account.ID == uuid.Nil {
		return nil, domain.ErrAccountNotFound
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.accounts[account.ID]; ok {
		out := *existing
		return &out, nil
	}
	now := l.now()
	if account.Kind == "" {
		account.Kind = domain.AccountKindUser
	}
	if account.KYCTier == "" {
		account.KYCTier = domain.KYCTierNone
	}
	account.SUPBalance = decimal.Zero
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	stored := account
	l.accounts[account.ID] = &stored
	return &account, nil
}

func (l *MemoryLedger) FindAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *acct
	return &out, nil
}

func (l *MemoryLedger) UpdateKYCTier(ctx context.Context, id uuid.UUID, tier domain.KYCTier) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if acct.KYCTier != tier {
		acct.KYCTier = tier
		acct.UpdatedAt = l.now()
	}
	return nil
}

func (l *MemoryLedger) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stored, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	out := cloneTransaction(*stored)
	return &out, nil
}

func (l *MemoryLedger) FindTransfer(ctx context.Context, transferID string) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var legs []domain.Transaction
	for _, stored := range l.txs {
		if stored.Type != domain.TypeAdminTransfer || stored.ReversalOf != nil {
			continue
		}
		if stored.Meta[domain.MetaTransferID] == transferID {
			legs = append(legs, cloneTransaction(*stored))
		}
	}
	slices.SortFunc(legs, func(a, b domain.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return legs, nil
}

func (l *MemoryLedger) History(ctx context.Context, accountID uuid.UUID, filter domain.HistoryFilter) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		l.mu.RLock()
		matched := make([]domain.Transaction, 0, len(l.byAccount[accountID]))
		for _, id := range l.byAccount[accountID] {
			entry := *l.txs[id]
			if filter.Matches(entry) {
				matched = append(matched, cloneTransaction(entry))
			}
		}
		l.mu.RUnlock()

		slices.SortFunc(matched, compareNewestFirst)
		for i, entry := range matched {
			if filter.Limit > 0 && i >= filter.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(domain.Transaction{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func compareNewestFirst(a, b domain.Transaction) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(b.ID[:], a.ID[:])
}

func (l *MemoryLedger) ListPendingCashouts(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Transaction
	for _, entry := range l.txs {
		if entry.Type == domain.TypeCashout && entry.Status == domain.StatusPending && entry.CreatedAt.Before(createdBefore) {
			out = append(out, cloneTransaction(*entry))
		}
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLedger) Totals(ctx context.Context, weekStart time.Time) (domain.LedgerTotals, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totals := domain.LedgerTotals{
		TotalSUP:            decimal.Zero,
		OpenPrizePoolSUP:    decimal.Zero,
		CompletedBuyNGN:     decimal.Zero,
		CompletedCashoutNGN: decimal.Zero,
		WeeklyBuyNGN:        decimal.Zero,
		WeeklyCashoutNGN:    decimal.Zero,
		PendingCashoutNGN:   decimal.Zero,
	}
	for _, acct := range l.accounts {
		totals.TotalSUP = totals.TotalSUP.Add(acct.SUPBalance)
	}
	for _, round := range l.rounds {
		switch {
		case round.Status != domain.RoundClosed:
			totals.OpenPrizePoolSUP = totals.OpenPrizePoolSUP.Add(round.PoolSUP)
		case !round.RolloverClaimed:
			totals.OpenPrizePoolSUP = totals.OpenPrizePoolSUP.Add(round.RolloverSUP)
		}
	}
	for _, entry := range l.txs {
		if entry.ReversalOf != nil {
			continue
		}
		ngn := entry.AmountNGN.Abs()
		recent := !entry.CreatedAt.Before(weekStart)
		switch entry.Type {
		case domain.TypeBuy:
			if entry.Status == domain.StatusCompleted {
				totals.CompletedBuyNGN = totals.CompletedBuyNGN.Add(ngn)
				if recent {
					totals.WeeklyBuyNGN = totals.WeeklyBuyNGN.Add(ngn)
				}
			}
		case domain.TypeCashout:
			switch entry.Status {
			case domain.StatusCompleted:
				totals.CompletedCashoutNGN = totals.CompletedCashoutNGN.Add(ngn)
			case domain.StatusPending:
				totals.PendingCashouts++
				totals.PendingCashoutNGN = totals.PendingCashoutNGN.Add(ngn)
			}
			if entry.Effective() && recent {
				totals.WeeklyCashoutNGN = totals.WeeklyCashoutNGN.Add(ngn)
			}
		}
	}
	return totals, nil
}

func (l *MemoryLedger) ReconcileBalances(ctx context.Context) (int, []domain.BalanceDrift, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var drifts []domain.BalanceDrift
	for id, acct := range l.accounts {
		computed := decimal.Zero
		for _, txID := range l.byAccount[id] {
			if entry := l.txs[txID]; entry.Effective() {
				computed = computed.Add(entry.AmountSUP)
			}
		}
		if !computed.Equal(acct.SUPBalance) {
			drifts = append(drifts, domain.BalanceDrift{AccountID: id, Cached: acct.SUPBalance, Computed: computed})
		}
	}
	return len(l.accounts), drifts, nil
}

func (l *MemoryLedger) Controls(ctx context.Context) (domain.TreasuryControls, error) {
	l.controlsMu.RLock()
	defer l.controlsMu.RUnlock()
	return l.controls, nil
}

func (l *MemoryLedger) UpdateControls(ctx context.Context, audit domain.AuditEntry, fn func(*domain.TreasuryControls) (bool, error)) (domain.TreasuryControls, error) {
	l.controlsMu.Lock()
	defer l.controlsMu.Unlock()

	next := l.controls
	changed, err := fn(&next)
	if err != nil {
		return l.controls, err
	}
	if !changed {
		return l.controls, nil
	}
	l.controls = next

	l.mu.Lock()
	l.audit = append(l.audit, withAuditDefaults(audit, l.now()))
	l.mu.Unlock()
	return next, nil
}

func (l *MemoryLedger) OpenRound(ctx context.Context, round domain.PrizeRound) (*domain.PrizeRound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rolled := decimal.Zero
	for _, prior := range l.rounds {
		if prior.Status == domain.RoundClosed && !prior.RolloverClaimed && prior.RolloverSUP.IsPositive() {
			rolled = rolled.Add(prior.RolloverSUP)
			prior.RolloverClaimed = true
		}
	}

	if round.ID == uuid.Nil {
		round.ID = uuid.New()
	}
	if round.OpenedAt.IsZero() {
		round.OpenedAt = l.now()
	}
	round.Status = domain.RoundOpen
	round.RolledInSUP = rolled
	round.PoolSUP = round.PoolSUP.Add(rolled)
	stored := cloneRound(round)
	l.rounds[round.ID] = &stored
	out := cloneRound(stored)
	return &out, nil
}

func (l *MemoryLedger) GetRound(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	round, ok := l.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	out := cloneRound(*round)
	return &out, nil
}

func (l *MemoryLedger) ListRounds(ctx context.Context, filter domain.RoundFilter) ([]domain.PrizeRound, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.PrizeRound
	for _, round := range l.rounds {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, round.Status) {
			continue
		}
		if !filter.DueBefore.IsZero() && !round.ClosesAt.Before(filter.DueBefore) {
			continue
		}
		out = append(out, cloneRound(*round))
	}
	slices.SortFunc(out, func(a, b domain.PrizeRound) int { return b.OpenedAt.Compare(a.OpenedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *MemoryLedger) BeginDraw(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error) {
	m := l.roundLock(id)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	round, ok := l.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	if round.Status != domain.RoundOpen {
		return nil, domain.ErrRoundNotOpen
	}
	round.Status = domain.RoundDrawing
	out := cloneRound(*round)
	return &out, nil
}

func alertKey(a *domain.SecurityAlert) uuid.UUID {
	if a.AccountID == nil {
		return uuid.Nil
	}
	return *a.AccountID
}

func (l *MemoryLedger) InsertAlertUnlessRecent(ctx context.Context, alert domain.SecurityAlert, since time.Time) (*domain.SecurityAlert, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.alerts {
		if existing.Type == alert.Type && !existing.Resolved && alertKey(existing) == alertKey(&alert) && !existing.Timestamp.Before(since) {
			out := cloneAlert(*existing)
			return &out, false, nil
		}
	}
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = l.now()
	}
	stored := cloneAlert(alert)
	l.alerts = append(l.alerts, &stored)
	out := cloneAlert(stored)
	return &out, true, nil
}

func (l *MemoryLedger) GetAlert(ctx context.Context, id uuid.UUID) (*domain.SecurityAlert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.alerts {
		if a.ID == id {
			out := cloneAlert(*a)
			return &out, nil
		}
	}
	return nil, domain.ErrAlertNotFound
}

func (l *MemoryLedger) ResolveAlert(ctx context.Context, id uuid.UUID, actor, note string, at time.Time, audit domain.AuditEntry) (*domain.SecurityAlert, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.alerts {
		if a.ID != id {
			continue
		}
		if a.Resolved {
			out := cloneAlert(*a)
			return &out, false, nil
		}
		a.Resolved = true
		a.ResolvedBy = actor
		a.ResolutionNote = note
		resolvedAt := at
		a.ResolvedAt = &resolvedAt
		l.audit = append(l.audit, withAuditDefaults(audit, at))
		out := cloneAlert(*a)
		return &out, true, nil
	}
	return nil, false, domain.ErrAlertNotFound
}

func (l *MemoryLedger) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.SecurityAlert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.SecurityAlert
	for i := len(l.alerts) - 1; i >= 0; i-- {
		a := l.alerts[i]
		if filter.UnresolvedOnly && a.Resolved {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		out = append(out, cloneAlert(*a))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLedger) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(l.audit) - 1; i >= 0; i-- {
		out = append(out, l.audit[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	t.Meta = maps.Clone(t.Meta)
	if t.ReversalOf != nil {
		id := *t.ReversalOf
		t.ReversalOf = &id
	}
	return t
}

func cloneRound(r domain.PrizeRound) domain.PrizeRound {
	r.Entries = slices.Clone(r.Entries)
	r.Winners = slices.Clone(r.Winners)
	if r.ClosedAt != nil {
		at := *r.ClosedAt
		r.ClosedAt = &at
	}
	return r
}

func cloneAlert(a domain.SecurityAlert) domain.SecurityAlert {
	if a.AccountID != nil {
		id := *a.AccountID
		a.AccountID = &id
	}
	if a.ResolvedAt != nil {
		at := *a.ResolvedAt
		a.ResolvedAt = &at
	}
	return a
}
