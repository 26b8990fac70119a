package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-wallet/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore expects db to be opened with TranslateError enabled so
// unique violations surface as gorm.ErrDuplicatedKey.
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *GormLedgerStore) WithTx(ctx context.Context, fn func(tx LedgerStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedgerStore{db: tx})
	})
}

func (s *GormLedgerStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return translate(s.db.WithContext(ctx).Create(wallet).Error)
}

func (s *GormLedgerStore) GetWallet(ctx context.Context, userId int) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userId).First(&wallet).Error; err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

// ApplyWalletDelta issues one conditional UPDATE. The WHERE clause re-checks
// the invariant against the post-delta values so concurrent writers cannot
// interleave between a read and the write.
func (s *GormLedgerStore) ApplyWalletDelta(ctx context.Context, userId int, delta WalletDelta) error {
	db := s.db.WithContext(ctx)

	query := db.Model(&models.Wallet{}).
		Where("user_id = ?", userId).
		Where("(balance + ?) - (invested_amount + ?) - (pending_withdrawal + ?) >= 0",
			delta.Balance, delta.InvestedAmount, delta.PendingWithdrawal).
		Where("balance + ? >= 0", delta.Balance).
		Where("invested_amount + ? >= 0", delta.InvestedAmount).
		Where("pending_withdrawal + ? >= 0", delta.PendingWithdrawal)

	if delta.ExpectWithdrawalCount != nil {
		query = query.Where("withdrawal_count = ?", *delta.ExpectWithdrawalCount)
	}
	if delta.NotWithdrawnSince != nil {
		query = query.Where("(last_withdrawal_at IS NULL OR last_withdrawal_at <= ?)", *delta.NotWithdrawnSince)
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if !delta.Balance.IsZero() {
		updates["balance"] = gorm.Expr("balance + ?", delta.Balance)
	}
	if !delta.InvestedAmount.IsZero() {
		updates["invested_amount"] = gorm.Expr("invested_amount + ?", delta.InvestedAmount)
	}
	if !delta.PendingWithdrawal.IsZero() {
		updates["pending_withdrawal"] = gorm.Expr("pending_withdrawal + ?", delta.PendingWithdrawal)
	}
	if !delta.TotalEarnings.IsZero() {
		updates["total_earnings"] = gorm.Expr("total_earnings + ?", delta.TotalEarnings)
	}
	if delta.WithdrawalCount != 0 {
		updates["withdrawal_count"] = gorm.Expr("withdrawal_count + ?", delta.WithdrawalCount)
	}
	if delta.LastWithdrawalAt != nil {
		updates["last_withdrawal_at"] = *delta.LastWithdrawalAt
	}

	res := query.UpdateColumns(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Wallet{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrGuardRejected
}

func (s *GormLedgerStore) InsertTransaction(ctx context.Context, trx *models.Transaction) error {
	return translate(s.db.WithContext(ctx).Create(trx).Error)
}

func (s *GormLedgerStore) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	var trx models.Transaction
	if err := s.db.WithContext(ctx).First(&trx, id).Error; err != nil {
		return nil, translate(err)
	}
	return &trx, nil
}

func (s *GormLedgerStore) UpdateTransactionStatus(ctx context.Context, id int, from, to models.TransactionStatus, at time.Time) error {
	if !from.CanTransition(to) {
		return ErrConflict
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == models.StatusCompleted {
		updates["completed_at"] = at
	}
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrConflict(ctx, &models.Transaction{}, id)
	}
	return nil
}

func (s *GormLedgerStore) missingOrConflict(ctx context.Context, model interface{}, id int) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *GormLedgerStore) ListTransactions(ctx context.Context, userId, page, limit int) ([]models.Transaction, int64, error) {
	_, limit, offset := normalizePage(page, limit)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Transaction{}).Where("user_id = ?", userId).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var list []models.Transaction
	if err := db.Where("user_id = ?", userId).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, translate(err)
	}
	return list, total, nil
}

func (s *GormLedgerStore) ListCompletedDeposits(ctx context.Context, since time.Time) ([]models.Transaction, error) {
	var list []models.Transaction
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ? AND completed_at >= ?", models.TransactionDeposit, models.StatusCompleted, since).
		Order("id ASC").
		Find(&list).Error
	return list, translate(err)
}

func (s *GormLedgerStore) ReferralEdges(ctx context.Context, referredId int) ([]models.ReferralEdge, error) {
	var edges []models.ReferralEdge
	err := s.db.WithContext(ctx).Where("referred_id = ?", referredId).Order("level ASC").Find(&edges).Error
	return edges, translate(err)
}

func (s *GormLedgerStore) InsertReferralEdge(ctx context.Context, edge *models.ReferralEdge) error {
	return translate(s.db.WithContext(ctx).Create(edge).Error)
}

func (s *GormLedgerStore) CountDownline(ctx context.Context, referrerId int) (map[int]int64, error) {
	var rows []struct {
		Level int
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&models.ReferralEdge{}).
		Select("level, COUNT(*) AS total").
		Where("referrer_id = ?", referrerId).
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[row.Level] = row.Total
	}
	return counts, nil
}

// InsertReferralEarningIfAbsent runs the insert under a savepoint so a unique
// violation leaves the surrounding transaction usable on every driver.
func (s *GormLedgerStore) InsertReferralEarningIfAbsent(ctx context.Context, earning *models.ReferralEarning) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(earning).Error
	})
	if err == nil {
		return true, nil
	}
	if err = translate(err); errors.Is(err, ErrConflict) {
		return false, nil
	}
	return false, err
}

func (s *GormLedgerStore) ListReferralEarnings(ctx context.Context, userId, page, limit int) ([]models.ReferralEarning, int64, error) {
	_, limit, offset := normalizePage(page, limit)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.ReferralEarning{}).Where("user_id = ?", userId).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var list []models.ReferralEarning
	if err := db.Where("user_id = ?", userId).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, translate(err)
	}
	return list, total, nil
}

func (s *GormLedgerStore) EarningsForTransaction(ctx context.Context, transactionId int) ([]models.ReferralEarning, error) {
	var list []models.ReferralEarning
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionId).Order("level ASC").Find(&list).Error
	return list, translate(err)
}

func (s *GormLedgerStore) InsertWithdrawalRequest(ctx context.Context, req *models.WithdrawalRequest) error {
	return translate(s.db.WithContext(ctx).Create(req).Error)
}

func (s *GormLedgerStore) GetWithdrawalRequest(ctx context.Context, id int) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *GormLedgerStore) UpdateWithdrawalStatus(ctx context.Context, id int, from, to models.WithdrawalStatus, reviewedBy, comment string) error {
	if !from.CanTransition(to) {
		return ErrConflict
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if reviewedBy != "" {
		updates["reviewed_by"] = reviewedBy
	}
	if comment != "" {
		updates["comment"] = comment
	}
	res := s.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrConflict(ctx, &models.WithdrawalRequest{}, id)
	}
	return nil
}

func (s *GormLedgerStore) ListWithdrawalRequests(ctx context.Context, userId, page, limit int) ([]models.WithdrawalRequest, int64, error) {
	_, limit, offset := normalizePage(page, limit)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.WithdrawalRequest{}).Where("user_id = ?", userId).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var list []models.WithdrawalRequest
	if err := db.Where("user_id = ?", userId).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, translate(err)
	}
	return list, total, nil
}

func (s *GormLedgerStore) InsertInvestment(ctx context.Context, inv *models.Investment) error {
	return translate(s.db.WithContext(ctx).Create(inv).Error)
}

func (s *GormLedgerStore) GetInvestment(ctx context.Context, id int) (*models.Investment, error) {
	var inv models.Investment
	if err := s.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *GormLedgerStore) UpdateInvestmentStatus(ctx context.Context, id int, from, to models.InvestmentStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrConflict(ctx, &models.Investment{}, id)
	}
	return nil
}

func (s *GormLedgerStore) ActiveInvestmentStakes(ctx context.Context, userId int) ([]decimal.Decimal, error) {
	var stakes []decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("user_id = ? AND status = ?", userId, models.InvestmentActive).
		Order("amount DESC").
		Pluck("amount", &stakes).Error
	return stakes, translate(err)
}

func (s *GormLedgerStore) InsertCallbackLog(ctx context.Context, entry *models.CallbackLog) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}
