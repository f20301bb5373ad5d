package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"logipay/internal/model"
	"logipay/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWalletCreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	credit, err := svc.Credit(ctx, CreditRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(500),
		Source:      model.TransactionSourceRecharge,
		ReferenceID: "RCH-1",
	})
	require.NoError(t, err)
	require.Equal(t, "500.00", credit.Balance.StringFixed(2))
	require.NotEmpty(t, credit.TransactionNo)

	debit, err := svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  10,
		Amount:      decimal.NewFromInt(200),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-1",
	})
	require.NoError(t, err)
	require.Equal(t, "300.00", debit.Balance.StringFixed(2))

	summary, err := svc.GetSummary(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "300.00", summary.Balance.StringFixed(2))
	require.Equal(t, "500.00", summary.TotalCredited.StringFixed(2))
	require.Equal(t, "200.00", summary.TotalDebited.StringFixed(2))
	require.Equal(t, int64(2), summary.TransactionCount)
	require.True(t, summary.LedgerConsistent)
	require.Equal(t, debit.TransactionNo, summary.LastTransactionNo)
	require.NotNil(t, summary.LastRechargedAt)

	trans, err := svc.GetTransaction(ctx, debit.TransactionNo)
	require.NoError(t, err)
	require.Equal(t, model.TransactionTypeDebit, trans.Type)

	_, err = svc.GetTransaction(ctx, "TXN-UNKNOWN")
	require.ErrorIs(t, err, repository.ErrTransactionNotFound)
}

// The ledger must chain: every entry's opening balance equals the previous
// entry's closing balance, and the wallet balance equals the newest closing.
func TestWalletLedgerChain(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	amounts := []int64{100, 250, 75}
	for i, amount := range amounts {
		_, err := svc.Credit(ctx, CreditRequest{
			FranchiseID: 1,
			CustomerID:  20,
			Amount:      decimal.NewFromInt(amount),
			Source:      model.TransactionSourceAdjustment,
			ReferenceID: "ADJ",
		})
		require.NoError(t, err, "credit %d", i)
	}
	_, err := svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  20,
		Amount:      decimal.NewFromInt(125),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-2",
	})
	require.NoError(t, err)

	var entries []*model.WalletTransaction
	require.NoError(t, db.Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 4)

	for i := 1; i < len(entries); i++ {
		require.True(t, entries[i].OpeningBalance.Equal(entries[i-1].ClosingBalance),
			"entry %d opening %s != previous closing %s", i,
			entries[i].OpeningBalance, entries[i-1].ClosingBalance)
	}

	var wallet model.Wallet
	require.NoError(t, db.Where("franchise_id = ? AND customer_id = ?", 1, 20).First(&wallet).Error)
	require.True(t, wallet.Balance.Equal(entries[len(entries)-1].ClosingBalance))
	require.Equal(t, "300.00", wallet.Balance.StringFixed(2))
}

func TestWalletDebitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	_, err := svc.Credit(ctx, CreditRequest{
		FranchiseID: 1,
		CustomerID:  30,
		Amount:      decimal.NewFromInt(100),
		Source:      model.TransactionSourceRecharge,
		ReferenceID: "RCH-2",
	})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  30,
		Amount:      decimal.NewFromInt(150),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-3",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	summary, err := svc.GetSummary(ctx, 1, 30)
	require.NoError(t, err)
	require.Equal(t, "100.00", summary.Balance.StringFixed(2))
	require.Equal(t, int64(1), summary.TransactionCount)
}

func TestWalletNegativeBalanceWithinCreditLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	wallet := &model.Wallet{
		FranchiseID:   1,
		CustomerID:    40,
		Balance:       decimal.Zero,
		CreditLimit:   decimal.NewFromInt(200),
		AllowNegative: true,
		Status:        model.WalletStatusActive,
	}
	require.NoError(t, db.Create(wallet).Error)

	debit, err := svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  40,
		Amount:      decimal.NewFromInt(150),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-4",
	})
	require.NoError(t, err)
	require.Equal(t, "-150.00", debit.Balance.StringFixed(2))

	_, err = svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  40,
		Amount:      decimal.NewFromInt(100),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-5",
	})
	require.ErrorIs(t, err, ErrCreditLimitExceeded)
}

func TestWalletBlockedRejectsMutations(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	wallet := &model.Wallet{
		FranchiseID: 1,
		CustomerID:  50,
		Balance:     decimal.NewFromInt(1000),
		Status:      model.WalletStatusBlocked,
	}
	require.NoError(t, db.Create(wallet).Error)

	_, err := svc.Credit(ctx, CreditRequest{
		FranchiseID: 1,
		CustomerID:  50,
		Amount:      decimal.NewFromInt(10),
		Source:      model.TransactionSourceRecharge,
		ReferenceID: "RCH-3",
	})
	require.ErrorIs(t, err, ErrWalletBlocked)

	_, err = svc.Debit(ctx, DebitRequest{
		FranchiseID: 1,
		CustomerID:  50,
		Amount:      decimal.NewFromInt(10),
		Source:      model.TransactionSourceShipment,
		ReferenceID: "SHP-6",
	})
	require.ErrorIs(t, err, ErrWalletBlocked)
}

func TestWalletRejectsNonPositiveAmounts(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	_, err := svc.Credit(ctx, CreditRequest{FranchiseID: 1, CustomerID: 60, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Debit(ctx, DebitRequest{FranchiseID: 1, CustomerID: 60, Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWalletExportStatement(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestLogger())
	ctx := context.Background()

	_, err := svc.Credit(ctx, CreditRequest{
		FranchiseID: 1,
		CustomerID:  70,
		Amount:      decimal.NewFromFloat(123.456),
		Source:      model.TransactionSourceRecharge,
		ReferenceID: "RCH-4",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportStatement(ctx, 1, 70, 10, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "date,type,source,reference,amount,opening_balance,closing_balance", lines[0])
	require.Contains(t, lines[1], "CREDIT")
	require.Contains(t, lines[1], "123.46")
	require.Contains(t, lines[1], "RCH-4")
}
