package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"invest-wallet/internal/models"

	"github.com/shopspring/decimal"
)

type earningKey struct {
	transactionId int
	level         int
}

type memoryState struct {
	walletSeq     int
	trxSeq        int
	edgeSeq       int
	earningSeq    int
	withdrawalSeq int
	investmentSeq int
	callbackSeq   uint

	wallets      map[int]models.Wallet
	transactions map[int]models.Transaction
	references   map[string]int
	edges        map[int]models.ReferralEdge
	earnings     map[earningKey]models.ReferralEarning
	withdrawals  map[int]models.WithdrawalRequest
	investments  map[int]models.Investment
	callbacks    []models.CallbackLog
}

func newMemoryState() *memoryState {
	return &memoryState{
		wallets:      map[int]models.Wallet{},
		transactions: map[int]models.Transaction{},
		references:   map[string]int{},
		edges:        map[int]models.ReferralEdge{},
		earnings:     map[earningKey]models.ReferralEarning{},
		withdrawals:  map[int]models.WithdrawalRequest{},
		investments:  map[int]models.Investment{},
	}
}

func (m *memoryState) clone() *memoryState {
	c := *m
	c.wallets = make(map[int]models.Wallet, len(m.wallets))
	for k, v := range m.wallets {
		c.wallets[k] = v
	}
	c.transactions = make(map[int]models.Transaction, len(m.transactions))
	for k, v := range m.transactions {
		c.transactions[k] = v
	}
	c.references = make(map[string]int, len(m.references))
	for k, v := range m.references {
		c.references[k] = v
	}
	c.edges = make(map[int]models.ReferralEdge, len(m.edges))
	for k, v := range m.edges {
		c.edges[k] = v
	}
	c.earnings = make(map[earningKey]models.ReferralEarning, len(m.earnings))
	for k, v := range m.earnings {
		c.earnings[k] = v
	}
	c.withdrawals = make(map[int]models.WithdrawalRequest, len(m.withdrawals))
	for k, v := range m.withdrawals {
		c.withdrawals[k] = v
	}
	c.investments = make(map[int]models.Investment, len(m.investments))
	for k, v := range m.investments {
		c.investments[k] = v
	}
	c.callbacks = append([]models.CallbackLog(nil), m.callbacks...)
	return &c
}

// MemoryLedgerStore keeps the ledger in process memory. Store transactions are
// serialized by a single mutex and rolled back by restoring a snapshot. It backs
// the tests and DB_DRIVER=memory.
type MemoryLedgerStore struct {
	mu    *sync.Mutex
	state **memoryState
	inTx  bool
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	state := newMemoryState()
	return &MemoryLedgerStore{mu: &sync.Mutex{}, state: &state}
}

func (s *MemoryLedgerStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryLedgerStore) st() *memoryState {
	return *s.state
}

func (s *MemoryLedgerStore) WithTx(ctx context.Context, fn func(tx LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.lock()
	defer unlock()

	snapshot := s.st().clone()
	tx := &MemoryLedgerStore{mu: s.mu, state: s.state, inTx: true}
	if err := fn(tx); err != nil {
		*s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryLedgerStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	defer s.lock()()
	st := s.st()
	if _, ok := st.wallets[wallet.UserId]; ok {
		return ErrConflict
	}
	st.walletSeq++
	now := time.Now()
	wallet.ID = st.walletSeq
	wallet.CreatedAt, wallet.UpdatedAt = now, now
	st.wallets[wallet.UserId] = *wallet
	return nil
}

func (s *MemoryLedgerStore) GetWallet(ctx context.Context, userId int) (*models.Wallet, error) {
	defer s.lock()()
	wallet, ok := s.st().wallets[userId]
	if !ok {
		return nil, ErrNotFound
	}
	return &wallet, nil
}

func (s *MemoryLedgerStore) ApplyWalletDelta(ctx context.Context, userId int, delta WalletDelta) error {
	defer s.lock()()
	st := s.st()
	wallet, ok := st.wallets[userId]
	if !ok {
		return ErrNotFound
	}
	if delta.ExpectWithdrawalCount != nil && wallet.WithdrawalCount != *delta.ExpectWithdrawalCount {
		return ErrGuardRejected
	}
	if delta.NotWithdrawnSince != nil && wallet.LastWithdrawalAt != nil && wallet.LastWithdrawalAt.After(*delta.NotWithdrawnSince) {
		return ErrGuardRejected
	}

	next := wallet
	next.Balance = wallet.Balance.Add(delta.Balance)
	next.InvestedAmount = wallet.InvestedAmount.Add(delta.InvestedAmount)
	next.PendingWithdrawal = wallet.PendingWithdrawal.Add(delta.PendingWithdrawal)
	next.TotalEarnings = wallet.TotalEarnings.Add(delta.TotalEarnings)
	next.WithdrawalCount = wallet.WithdrawalCount + delta.WithdrawalCount
	if delta.LastWithdrawalAt != nil {
		at := *delta.LastWithdrawalAt
		next.LastWithdrawalAt = &at
	}

	if next.Balance.IsNegative() || next.InvestedAmount.IsNegative() ||
		next.PendingWithdrawal.IsNegative() || next.AvailableBalance().IsNegative() {
		return ErrGuardRejected
	}
	next.UpdatedAt = time.Now()
	st.wallets[userId] = next
	return nil
}

func (s *MemoryLedgerStore) InsertTransaction(ctx context.Context, trx *models.Transaction) error {
	defer s.lock()()
	st := s.st()
	if _, ok := st.references[trx.Reference]; ok && trx.Reference != "" {
		return ErrConflict
	}
	st.trxSeq++
	now := time.Now()
	trx.ID = st.trxSeq
	trx.CreatedAt, trx.UpdatedAt = now, now
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	st.transactions[trx.ID] = *trx
	if trx.Reference != "" {
		st.references[trx.Reference] = trx.ID
	}
	return nil
}

func (s *MemoryLedgerStore) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	defer s.lock()()
	trx, ok := s.st().transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &trx, nil
}

func (s *MemoryLedgerStore) UpdateTransactionStatus(ctx context.Context, id int, from, to models.TransactionStatus, at time.Time) error {
	defer s.lock()()
	st := s.st()
	trx, ok := st.transactions[id]
	if !ok {
		return ErrNotFound
	}
	if trx.Status != from || !from.CanTransition(to) {
		return ErrConflict
	}
	trx.Status = to
	trx.UpdatedAt = at
	if to == models.StatusCompleted {
		completed := at
		trx.CompletedAt = &completed
	}
	st.transactions[id] = trx
	return nil
}

func paginate[T any](items []T, page, limit int) []T {
	_, limit, offset := normalizePage(page, limit)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (s *MemoryLedgerStore) ListTransactions(ctx context.Context, userId, page, limit int) ([]models.Transaction, int64, error) {
	defer s.lock()()
	var list []models.Transaction
	for _, trx := range s.st().transactions {
		if trx.UserId == userId {
			list = append(list, trx)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (s *MemoryLedgerStore) ListCompletedDeposits(ctx context.Context, since time.Time) ([]models.Transaction, error) {
	defer s.lock()()
	var list []models.Transaction
	for _, trx := range s.st().transactions {
		if trx.Type != models.TransactionDeposit || trx.Status != models.StatusCompleted || trx.CompletedAt == nil {
			continue
		}
		if !trx.CompletedAt.Before(since) {
			list = append(list, trx)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *MemoryLedgerStore) ReferralEdges(ctx context.Context, referredId int) ([]models.ReferralEdge, error) {
	defer s.lock()()
	var edges []models.ReferralEdge
	for _, edge := range s.st().edges {
		if edge.ReferredId == referredId {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Level < edges[j].Level })
	return edges, nil
}

func (s *MemoryLedgerStore) InsertReferralEdge(ctx context.Context, edge *models.ReferralEdge) error {
	defer s.lock()()
	st := s.st()
	for _, existing := range st.edges {
		if existing.ReferredId == edge.ReferredId && existing.Level == edge.Level {
			return ErrConflict
		}
	}
	st.edgeSeq++
	edge.ID = st.edgeSeq
	edge.CreatedAt = time.Now()
	st.edges[edge.ID] = *edge
	return nil
}

func (s *MemoryLedgerStore) CountDownline(ctx context.Context, referrerId int) (map[int]int64, error) {
	defer s.lock()()
	counts := map[int]int64{}
	for _, edge := range s.st().edges {
		if edge.ReferrerId == referrerId {
			counts[edge.Level]++
		}
	}
	return counts, nil
}

func (s *MemoryLedgerStore) InsertReferralEarningIfAbsent(ctx context.Context, earning *models.ReferralEarning) (bool, error) {
	defer s.lock()()
	st := s.st()
	key := earningKey{transactionId: earning.TransactionId, level: earning.Level}
	if _, ok := st.earnings[key]; ok {
		return false, nil
	}
	st.earningSeq++
	earning.ID = st.earningSeq
	earning.CreatedAt = time.Now()
	st.earnings[key] = *earning
	return true, nil
}

func (s *MemoryLedgerStore) ListReferralEarnings(ctx context.Context, userId, page, limit int) ([]models.ReferralEarning, int64, error) {
	defer s.lock()()
	var list []models.ReferralEarning
	for _, earning := range s.st().earnings {
		if earning.UserId == userId {
			list = append(list, earning)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (s *MemoryLedgerStore) EarningsForTransaction(ctx context.Context, transactionId int) ([]models.ReferralEarning, error) {
	defer s.lock()()
	var list []models.ReferralEarning
	for key, earning := range s.st().earnings {
		if key.transactionId == transactionId {
			list = append(list, earning)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Level < list[j].Level })
	return list, nil
}

func (s *MemoryLedgerStore) InsertWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error {
	defer s.lock()()
	st := s.st()
	st.withdrawalSeq++
	now := time.Now()
	req.ID = st.withdrawalSeq
	req.CreatedAt, req.UpdatedAt = now, now
	if req.Status == "" {
		req.Status = models.WithdrawalPending
	}
	st.withdrawals[req.ID] = *req
	return nil
}

func (s *MemoryLedgerStore) GetWithdrawalRequest(ctx context.Context, id int) (*models.WithdrawalRequest, error) {
	defer s.lock()()
	req, ok := s.st().withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (s *MemoryLedgerStore) UpdateWithdrawalStatus(ctx context.Context, id int, from, to models.WithdrawalStatus, reviewedBy, comment string) error {
	defer s.lock()()
	st := s.st()
	req, ok := st.withdrawals[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != from || !from.CanTransition(to) {
		return ErrConflict
	}
	req.Status = to
	if reviewedBy != "" {
		req.ReviewedBy = reviewedBy
	}
	if comment != "" {
		req.Comment = comment
	}
	req.UpdatedAt = time.Now()
	st.withdrawals[id] = req
	return nil
}

func (s *MemoryLedgerStore) ListWithdrawalRequests(ctx context.Context, userId, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	defer s.lock()()
	var list []models.WithdrawalRequest
	for _, req := range s.st().withdrawals {
		if req.UserId == userId {
			list = append(list, req)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return paginate(list, page, limit), int64(len(list)), nil
}

func (s *MemoryLedgerStore) InsertInvestment(ctx context.Context, inv *models.Investment) error {
	defer s.lock()()
	st := s.st()
	st.investmentSeq++
	now := time.Now()
	inv.ID = st.investmentSeq
	inv.CreatedAt, inv.UpdatedAt = now, now
	if inv.Status == "" {
		inv.Status = models.InvestmentActive
	}
	st.investments[inv.ID] = *inv
	return nil
}

func (s *MemoryLedgerStore) GetInvestment(ctx context.Context, id int) (*models.Investment, error) {
	defer s.lock()()
	inv, ok := s.st().investments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (s *MemoryLedgerStore) UpdateInvestmentStatus(ctx context.Context, id int, from, to models.InvestmentStatus) error {
	defer s.lock()()
	st := s.st()
	inv, ok := st.investments[id]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != from {
		return ErrConflict
	}
	inv.Status = to
	inv.UpdatedAt = time.Now()
	st.investments[id] = inv
	return nil
}

func (s *MemoryLedgerStore) ActiveInvestmentStakes(ctx context.Context, userId int) ([]decimal.Decimal, error) {
	defer s.lock()()
	var stakes []decimal.Decimal
	for _, inv := range s.st().investments {
		if inv.UserId == userId && inv.Status == models.InvestmentActive {
			stakes = append(stakes, inv.Amount)
		}
	}
	sort.Slice(stakes, func(i, j int) bool { return stakes[i].GreaterThan(stakes[j]) })
	return stakes, nil
}

func (s *MemoryLedgerStore) InsertCallbackLog(ctx context.Context, entry *models.CallbackLog) error {
	defer s.lock()()
	st := s.st()
	st.callbackSeq++
	now := time.Now()
	entry.ID = st.callbackSeq
	entry.CreatedAt, entry.UpdatedAt = now, now
	st.callbacks = append(st.callbacks, *entry)
	return nil
}

// CallbackLogs returns a copy of every recorded callback.
func (s *MemoryLedgerStore) CallbackLogs() []models.CallbackLog {
	defer s.lock()()
	return append([]models.CallbackLog(nil), s.st().callbacks...)
}
