package service

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"logipay/internal/model"
	"logipay/internal/repository"
	"logipay/pkg/idgen"
	"logipay/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WalletService owns per-customer balance state and the append-only ledger.
//
// Concurrency contract: exactly one in-flight credit or debit may hold the
// lock on a given wallet row; a second mutation of the same wallet blocks
// until the first's transaction ends, so opening/closing snapshots form a
// total order with no lost updates. Unrelated wallets never contend.
type WalletService struct {
	db              *gorm.DB
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	logger          *logging.Logger
}

func NewWalletService(db *gorm.DB, logger *logging.Logger) *WalletService {
	return &WalletService{
		db:              db,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		logger:          logger,
	}
}

type CreditRequest struct {
	FranchiseID int64
	CustomerID  int64
	Amount      decimal.Decimal
	Source      string
	ReferenceID string
	Metadata    model.JSONMap
}

type DebitRequest struct {
	FranchiseID int64
	CustomerID  int64
	Amount      decimal.Decimal
	Source      string
	ReferenceID string
	Metadata    model.JSONMap
	// AllowNegativeOverride lets the caller take the balance negative (up to
	// the credit limit) even when the wallet itself does not allow it.
	AllowNegativeOverride bool
}

// MutationResult reports the outcome of one committed balance mutation.
type MutationResult struct {
	WalletID      int64           `json:"wallet_id"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID int64           `json:"transaction_id"`
	TransactionNo string          `json:"transaction_no"`
}

// Credit runs CreditTx in its own transaction.
func (s *WalletService) Credit(ctx context.Context, req CreditRequest) (*MutationResult, error) {
	var result *MutationResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.CreditTx(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreditTx applies a credit inside the caller's open transaction, so a debit
// or credit can commit together with surrounding pipeline writes.
func (s *WalletService) CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*MutationResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, tx, req.FranchiseID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	wallet, err = s.walletRepo.GetForUpdate(ctx, tx, wallet.ID)
	if err != nil {
		return nil, err
	}
	if wallet.IsBlocked() {
		return nil, ErrWalletBlocked
	}

	amount := req.Amount.Round(2)
	opening := wallet.Balance
	closing := opening.Add(amount)

	updates := map[string]interface{}{"balance": closing}
	if req.Source == model.TransactionSourceRecharge {
		now := time.Now()
		updates["last_recharged_at"] = &now
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, updates); err != nil {
		return nil, err
	}

	trans := &model.WalletTransaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		WalletID:       wallet.ID,
		Type:           model.TransactionTypeCredit,
		Source:         req.Source,
		ReferenceID:    req.ReferenceID,
		Amount:         amount,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Metadata:       req.Metadata,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"wallet_id": wallet.ID,
		"source":    req.Source,
		"reference": req.ReferenceID,
		"amount":    amount,
		"balance":   closing,
	}).Info("wallet credited")

	return &MutationResult{
		WalletID:      wallet.ID,
		Balance:       closing,
		TransactionID: trans.ID,
		TransactionNo: trans.TransactionNo,
	}, nil
}

// Debit runs DebitTx in its own transaction.
func (s *WalletService) Debit(ctx context.Context, req DebitRequest) (*MutationResult, error) {
	var result *MutationResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.DebitTx(ctx, tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DebitTx applies a debit inside the caller's open transaction.
//
// A closing balance below zero is allowed only when the wallet (or an
// explicit override) permits negative balances, and never past -credit_limit.
func (s *WalletService) DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*MutationResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, tx, req.FranchiseID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	wallet, err = s.walletRepo.GetForUpdate(ctx, tx, wallet.ID)
	if err != nil {
		return nil, err
	}
	if wallet.IsBlocked() {
		return nil, ErrWalletBlocked
	}

	amount := req.Amount.Round(2)
	opening := wallet.Balance
	closing := opening.Sub(amount)

	if closing.IsNegative() {
		if !wallet.AllowNegative && !req.AllowNegativeOverride {
			return nil, ErrInsufficientBalance
		}
		if closing.LessThan(wallet.CreditLimit.Neg()) {
			return nil, ErrCreditLimitExceeded
		}
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, map[string]interface{}{"balance": closing}); err != nil {
		return nil, err
	}

	trans := &model.WalletTransaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		WalletID:       wallet.ID,
		Type:           model.TransactionTypeDebit,
		Source:         req.Source,
		ReferenceID:    req.ReferenceID,
		Amount:         amount,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Metadata:       req.Metadata,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"wallet_id": wallet.ID,
		"source":    req.Source,
		"reference": req.ReferenceID,
		"amount":    amount,
		"balance":   closing,
	}).Info("wallet debited")

	return &MutationResult{
		WalletID:      wallet.ID,
		Balance:       closing,
		TransactionID: trans.ID,
		TransactionNo: trans.TransactionNo,
	}, nil
}

// WalletSummary aggregates the ledger for one wallet. Totals come from the
// transaction rows, not the cached balance, so they are reconstructable.
type WalletSummary struct {
	WalletID          int64           `json:"wallet_id"`
	Balance           decimal.Decimal `json:"balance"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	AllowNegative     bool            `json:"allow_negative"`
	Status            string          `json:"status"`
	TotalCredited     decimal.Decimal `json:"total_credited"`
	TotalDebited      decimal.Decimal `json:"total_debited"`
	TransactionCount  int64           `json:"transaction_count"`
	LastTransactionNo string          `json:"last_transaction_no,omitempty"`
	LedgerConsistent  bool            `json:"ledger_consistent"`
	LastRechargedAt   *time.Time      `json:"last_recharged_at"`
}

func (s *WalletService) GetSummary(ctx context.Context, franchiseID, customerID int64) (*WalletSummary, error) {
	wallet, err := s.walletRepo.GetByFranchiseCustomer(ctx, nil, franchiseID, customerID)
	if err != nil {
		return nil, err
	}

	credited, creditCount, err := s.transactionRepo.SumByType(ctx, wallet.ID, model.TransactionTypeCredit)
	if err != nil {
		return nil, err
	}
	debited, debitCount, err := s.transactionRepo.SumByType(ctx, wallet.ID, model.TransactionTypeDebit)
	if err != nil {
		return nil, err
	}

	summary := &WalletSummary{
		WalletID:         wallet.ID,
		Balance:          wallet.Balance,
		CreditLimit:      wallet.CreditLimit,
		AllowNegative:    wallet.AllowNegative,
		Status:           wallet.Status,
		TotalCredited:    credited,
		TotalDebited:     debited,
		TransactionCount: creditCount + debitCount,
		LastRechargedAt:  wallet.LastRechargedAt,
	}

	// The cached balance must equal the newest closing balance; surfacing the
	// check lets operators spot a drifted wallet without replaying the ledger.
	latest, err := s.transactionRepo.GetLatest(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		summary.LastTransactionNo = latest.TransactionNo
		summary.LedgerConsistent = wallet.Balance.Equal(latest.ClosingBalance)
	} else {
		summary.LedgerConsistent = wallet.Balance.IsZero()
	}

	return summary, nil
}

// GetTransaction looks up a single ledger entry by its public number.
func (s *WalletService) GetTransaction(ctx context.Context, transactionNo string) (*model.WalletTransaction, error) {
	trans, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if trans == nil {
		return nil, repository.ErrTransactionNotFound
	}
	return trans, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, franchiseID, customerID int64, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	wallet, err := s.walletRepo.GetByFranchiseCustomer(ctx, nil, franchiseID, customerID)
	if err != nil {
		return nil, 0, err
	}
	return s.transactionRepo.ListByWalletID(ctx, wallet.ID, page, pageSize)
}

// ExportStatement writes the most recent ledger entries as a CSV report.
func (s *WalletService) ExportStatement(ctx context.Context, franchiseID, customerID int64, limit int, w io.Writer) error {
	transactions, _, err := s.ListTransactions(ctx, franchiseID, customerID, 1, limit)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "type", "source", "reference", "amount", "opening_balance", "closing_balance"}); err != nil {
		return err
	}
	for _, trans := range transactions {
		record := []string{
			trans.CreatedAt.Format("2006-01-02 15:04:05"),
			trans.Type,
			trans.Source,
			trans.ReferenceID,
			trans.Amount.StringFixed(2),
			trans.OpeningBalance.StringFixed(2),
			trans.ClosingBalance.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
