package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/testutil"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transactionFixture struct {
	service      *TransactionService
	envelopes    *EnvelopeService
	transactions *testutil.MockTransactionRepository
	publisher    *testutil.MockEventPublisher
}

func setupTransactionService() *transactionFixture {
	txRepo := testutil.NewMockTransactionRepository()
	envRepo := testutil.NewMockEnvelopeRepository()
	txManager := testutil.NewMockTxManager()
	envelopes := NewEnvelopeService(envRepo, txRepo, txManager)
	settlements := NewSettlementService(txRepo, txManager)
	publisher := testutil.NewMockEventPublisher()

	svc := NewTransactionService(txRepo, txManager, envelopes, settlements)
	svc.SetEventPublisher(publisher)
	return &transactionFixture{
		service:      svc,
		envelopes:    envelopes,
		transactions: txRepo,
		publisher:    publisher,
	}
}

func groceries(amount string) TransactionInput {
	return TransactionInput{
		Amount:      dec(amount),
		Direction:   domain.DirectionExpense,
		Date:        date(2024, 6, 15),
		Category:    "food",
		Description: "Groceries",
	}
}

func remainingOf(t *testing.T, s *EnvelopeService, id uuid.UUID) string {
	t.Helper()
	envelope, err := s.GetEnvelope(context.Background(), testOwner, id)
	require.NoError(t, err)
	return envelope.Remaining.StringFixed(2)
}

func TestTransactionService_CreateFilesIntoCategoryEnvelope(t *testing.T) {
	f := setupTransactionService()
	master := newMaster(t, f.envelopes, "1000")
	food, err := newChild(f.envelopes, master, "300", "food")
	require.NoError(t, err)

	tx, err := f.service.CreateTransaction(context.Background(), testOwner, groceries("45.50"))

	require.NoError(t, err)
	require.NotNil(t, tx.EnvelopeID)
	assert.Equal(t, food.ID, *tx.EnvelopeID)
	assert.Equal(t, 12, tx.Date.Hour())
	assert.Equal(t, "254.50", remainingOf(t, f.envelopes, food.ID))
	assert.Equal(t, "700.00", remainingOf(t, f.envelopes, master.ID))
}

func TestTransactionService_IncomeIsNotFiled(t *testing.T) {
	f := setupTransactionService()
	master := newMaster(t, f.envelopes, "1000")
	_, err := newChild(f.envelopes, master, "300", "salary")
	require.NoError(t, err)

	in := groceries("2000")
	in.Direction = domain.DirectionIncome
	in.Category = "salary"
	tx, err := f.service.CreateTransaction(context.Background(), testOwner, in)

	require.NoError(t, err)
	assert.Nil(t, tx.EnvelopeID)
}

func TestTransactionService_ExplicitEnvelopeMustExist(t *testing.T) {
	f := setupTransactionService()
	in := groceries("10")
	missing := uuid.New()
	in.EnvelopeID = &missing

	_, err := f.service.CreateTransaction(context.Background(), testOwner, in)

	assert.ErrorIs(t, err, domain.ErrEnvelopeNotFound)
	assert.Zero(t, f.transactions.Count())
}

func TestTransactionService_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *TransactionInput)
		want   error
	}{
		{"zero amount", func(in *TransactionInput) { in.Amount = dec("0") }, domain.ErrInvalidAmount},
		{"bad direction", func(in *TransactionInput) { in.Direction = "refund" }, domain.ErrInvalidDirection},
		{"bad payment mode", func(in *TransactionInput) { in.PaymentMode = "credit" }, domain.ErrInvalidPaymentMode},
		{"deferred income", func(in *TransactionInput) {
			in.Direction = domain.DirectionIncome
			in.PaymentMode = domain.SettlementDeferred
		}, domain.ErrDeferredIncome},
		{"system category", func(in *TransactionInput) { in.Category = "deferred_settlement" }, domain.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTransactionService()
			in := groceries("10")
			tt.mutate(&in)

			_, err := f.service.CreateTransaction(context.Background(), testOwner, in)

			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.transactions.Count())
		})
	}
}

func TestTransactionService_DeferredLifecycle(t *testing.T) {
	f := setupTransactionService()
	ctx := context.Background()
	master := newMaster(t, f.envelopes, "1000")
	food, err := newChild(f.envelopes, master, "300", "food")
	require.NoError(t, err)

	in := groceries("80")
	in.PaymentMode = domain.SettlementDeferred
	primary, err := f.service.CreateTransaction(ctx, testOwner, in)
	require.NoError(t, err)

	rows := settlementsOf(t, f.transactions, primary)
	require.Len(t, rows, 1)
	settlement := rows[0]
	assert.Equal(t, "2024-07-01", util.DayKey(settlement.Date))
	assert.Nil(t, settlement.EnvelopeID)
	assert.Equal(t, "220.00", remainingOf(t, f.envelopes, food.ID))

	// Settlement rows cannot be edited or deleted directly
	_, err = f.service.UpdateTransaction(ctx, testOwner, settlement.ID, groceries("1"))
	assert.ErrorIs(t, err, domain.ErrSettlementReadOnly)
	assert.ErrorIs(t, f.service.DeleteTransaction(ctx, testOwner, settlement.ID), domain.ErrSettlementReadOnly)

	// Moving the primary into July moves the settlement into August
	in.Date = date(2024, 7, 3)
	_, err = f.service.UpdateTransaction(ctx, testOwner, primary.ID, in)
	require.NoError(t, err)
	rows = settlementsOf(t, f.transactions, primary)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-08-01", util.DayKey(rows[0].Date))

	require.NoError(t, f.service.DeleteTransaction(ctx, testOwner, primary.ID))

	assert.Empty(t, settlementsOf(t, f.transactions, primary))
	_, err = f.service.GetTransaction(ctx, testOwner, primary.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, "300.00", remainingOf(t, f.envelopes, food.ID))
}

func TestTransactionService_UpdateRefreshesBothEnvelopes(t *testing.T) {
	f := setupTransactionService()
	ctx := context.Background()
	master := newMaster(t, f.envelopes, "1000")
	food, err := newChild(f.envelopes, master, "300", "food")
	require.NoError(t, err)
	transport, err := newChild(f.envelopes, master, "100", "transport")
	require.NoError(t, err)

	tx, err := f.service.CreateTransaction(ctx, testOwner, groceries("60"))
	require.NoError(t, err)
	assert.Equal(t, "240.00", remainingOf(t, f.envelopes, food.ID))

	in := groceries("60")
	in.Category = "transport"
	updated, err := f.service.UpdateTransaction(ctx, testOwner, tx.ID, in)

	require.NoError(t, err)
	assert.Equal(t, transport.ID, *updated.EnvelopeID)
	assert.Equal(t, "300.00", remainingOf(t, f.envelopes, food.ID))
	assert.Equal(t, "40.00", remainingOf(t, f.envelopes, transport.ID))
}

func TestTransactionService_SettlementFailureKeepsPrimary(t *testing.T) {
	f := setupTransactionService()
	boom := errors.New("insert failed")
	var hook func(tx *domain.Transaction) (*domain.Transaction, error)
	hook = func(tx *domain.Transaction) (*domain.Transaction, error) {
		if tx.IsSettlement {
			return nil, boom
		}
		f.transactions.CreateFn = nil
		defer func() { f.transactions.CreateFn = hook }()
		return f.transactions.Create(context.Background(), tx)
	}
	f.transactions.CreateFn = hook

	in := groceries("80")
	in.PaymentMode = domain.SettlementDeferred
	primary, err := f.service.CreateTransaction(context.Background(), testOwner, in)

	require.NoError(t, err)
	assert.Equal(t, 1, f.transactions.Count())
	assert.Empty(t, settlementsOf(t, f.transactions, primary))
}

func TestTransactionService_OwnerIsolation(t *testing.T) {
	f := setupTransactionService()
	ctx := context.Background()
	tx, err := f.service.CreateTransaction(ctx, testOwner, groceries("10"))
	require.NoError(t, err)

	_, err = f.service.GetTransaction(ctx, "auth0|bob", tx.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.ErrorIs(t, f.service.DeleteTransaction(ctx, "auth0|bob", tx.ID), domain.ErrTransactionNotFound)

	list, err := f.service.ListTransactions(ctx, "auth0|bob", nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.service.ListTransactions(ctx, "", nil)
	assert.ErrorIs(t, err, domain.ErrOwnerRequired)
}

func TestTransactionService_PublishesEvents(t *testing.T) {
	f := setupTransactionService()
	ctx := context.Background()

	tx, err := f.service.CreateTransaction(ctx, testOwner, groceries("10"))
	require.NoError(t, err)
	_, err = f.service.UpdateTransaction(ctx, testOwner, tx.ID, groceries("12"))
	require.NoError(t, err)
	require.NoError(t, f.service.DeleteTransaction(ctx, testOwner, tx.ID))

	assert.Equal(t,
		[]string{"transaction.created", "transaction.updated", "transaction.deleted"},
		f.publisher.Types(testOwner))
}
