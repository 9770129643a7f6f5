package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/dankozobeats/voicetracker-backend/internal/testutil"
	"github.com/dankozobeats/voicetracker-backend/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generationFixture struct {
	service      *GenerationService
	rules        *testutil.MockRecurringRuleRepository
	transactions *testutil.MockTransactionRepository
	envelopes    *EnvelopeService
	owners       *testutil.MockOwnerRepository
}

func setupGenerationService(owners ...string) *generationFixture {
	ruleRepo := testutil.NewMockRecurringRuleRepository()
	txRepo := testutil.NewMockTransactionRepository()
	envRepo := testutil.NewMockEnvelopeRepository()
	ownerRepo := testutil.NewMockOwnerRepository(owners...)
	txManager := testutil.NewMockTxManager()
	envelopes := NewEnvelopeService(envRepo, txRepo, txManager)
	settlements := NewSettlementService(txRepo, txManager)

	return &generationFixture{
		service:      NewGenerationService(ruleRepo, txRepo, ownerRepo, txManager, envelopes, settlements),
		rules:        ruleRepo,
		transactions: txRepo,
		envelopes:    envelopes,
		owners:       ownerRepo,
	}
}

func ownedRule(owner string, rule *domain.RecurringRule) *domain.RecurringRule {
	rule.OwnerID = owner
	return rule
}

func TestGenerationService_GenerateOwnerIsIdempotent(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(31, date(2024, 1, 31))))
	weekly := monthlyRule(1, date(2024, 1, 1))
	weekly.Cadence = domain.CadenceWeekly
	weekly.DayOfMonth = nil
	weekly.Weekday = intPtr(1)
	f.rules.AddRule(ownedRule(testOwner, weekly))

	first, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", first.Month)
	assert.Equal(t, 5, first.Generated)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, 5, f.transactions.Count())

	second, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 5, second.Skipped)
	assert.Equal(t, 5, f.transactions.Count())

	rows, err := f.transactions.List(ctx, testOwner, nil)
	require.NoError(t, err)
	days := make([]string, len(rows))
	for i, row := range rows {
		days[i] = util.DayKey(row.Date)
		require.NotNil(t, row.Link)
		assert.Equal(t, domain.LinkRecurring, row.Link.Kind)
		assert.Equal(t, days[i], row.Link.Period)
	}
	assert.Equal(t, []string{"2024-03-04", "2024-03-11", "2024-03-18", "2024-03-25", "2024-03-31"}, days)
}

func TestGenerationService_DeletedRowIsNotRegenerated(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(10, date(2024, 1, 10))))

	_, err := f.service.GenerateOwner(ctx, testOwner, "2024-05")
	require.NoError(t, err)
	rows, err := f.transactions.List(ctx, testOwner, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, f.transactions.SoftDelete(ctx, testOwner, rows[0].ID))

	again, err := f.service.GenerateOwner(ctx, testOwner, "2024-05")

	require.NoError(t, err)
	assert.Equal(t, 0, again.Generated)
	assert.Equal(t, 1, again.Skipped)
	live, err := f.transactions.List(ctx, testOwner, nil)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestGenerationService_DeferredRuleGetsSettlement(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	rule := ownedRule(testOwner, monthlyRule(15, date(2024, 1, 15)))
	rule.Amount = dec("80")
	rule.SettlementMode = domain.SettlementDeferred
	f.rules.AddRule(rule)

	result, err := f.service.GenerateOwner(ctx, testOwner, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)

	settlements, err := f.transactions.ListSettlements(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, "2024-07-01", util.DayKey(settlements[0].Date))
	assert.Equal(t, "2024-06", settlements[0].Link.Period)

	_, err = f.service.GenerateOwner(ctx, testOwner, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 2, f.transactions.Count())
}

func TestGenerationService_DeferredIncomeIsImmediate(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	rule := ownedRule(testOwner, monthlyRule(25, date(2024, 1, 25)))
	rule.Direction = domain.DirectionIncome
	rule.Category = domain.CategorySalary
	rule.SettlementMode = domain.SettlementDeferred
	f.rules.AddRule(rule)

	_, err := f.service.GenerateOwner(ctx, testOwner, "2024-06")
	require.NoError(t, err)

	rows, err := f.transactions.List(ctx, testOwner, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.SettlementImmediate, rows[0].PaymentMode)
	assert.Nil(t, rows[0].EnvelopeID)
}

func TestGenerationService_FilesIntoEnvelope(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	master := newMaster(t, f.envelopes, "1000")
	housing, err := newChild(f.envelopes, master, "900", "housing")
	require.NoError(t, err)
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(1, date(2024, 1, 1))))

	_, err = f.service.GenerateOwner(ctx, testOwner, "2024-02")
	require.NoError(t, err)

	assert.Equal(t, "800.00", remainingOf(t, f.envelopes, housing.ID))
}

func TestGenerationService_CarryOverDeficitOnce(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	newMaster(t, f.envelopes, "1000")
	f.transactions.AddTransaction(&domain.Transaction{
		OwnerID:     testOwner,
		Amount:      dec("1300"),
		Direction:   domain.DirectionExpense,
		Date:        util.NormalizeAnchor(date(2024, 2, 20)),
		Category:    domain.CategoryHousing,
		PaymentMode: domain.SettlementImmediate,
	})

	first, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Carryovers)

	second, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Carryovers)

	rows, err := f.transactions.List(ctx, testOwner, &domain.TransactionFilters{
		Category: func() *domain.Category { c := domain.CategoryCarryover; return &c }(),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	carry := rows[0]
	assertDecimal(t, "300", carry.Amount, "carryover amount")
	assert.Equal(t, "2024-03-01", util.DayKey(carry.Date))
	assert.Equal(t, "2024-02", carry.Link.SourceID)
	assert.Equal(t, "2024-03", carry.Link.Period)
	assert.Equal(t, "2024-02", carry.Metadata()["carryoverFrom"])
}

func TestGenerationService_CarryoverIsNotRewritten(t *testing.T) {
	f := setupGenerationService()
	ctx := context.Background()
	newMaster(t, f.envelopes, "1000")
	f.transactions.AddTransaction(&domain.Transaction{
		OwnerID:     testOwner,
		Amount:      dec("1300"),
		Direction:   domain.DirectionExpense,
		Date:        util.NormalizeAnchor(date(2024, 2, 20)),
		Category:    domain.CategoryHousing,
		PaymentMode: domain.SettlementImmediate,
	})
	_, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)

	f.transactions.AddTransaction(&domain.Transaction{
		OwnerID:     testOwner,
		Amount:      dec("50"),
		Direction:   domain.DirectionExpense,
		Date:        util.NormalizeAnchor(date(2024, 2, 27)),
		Category:    domain.CategoryFood,
		PaymentMode: domain.SettlementImmediate,
	})
	second, err := f.service.GenerateOwner(ctx, testOwner, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Carryovers)

	carry, err := f.transactions.FindByLink(ctx, testOwner, domain.TransactionLink{
		Kind: domain.LinkCarryover, SourceID: "2024-02", Period: "2024-03",
	})
	require.NoError(t, err)
	assertDecimal(t, "300", carry.Amount, "carryover amount")

	err = f.envelopes.CheckCarryover(ctx, testOwner, date(2024, 3, 1), dec("350"))
	assert.True(t, errors.Is(err, domain.ErrCarryoverDrift))
}

func TestGenerationService_NoMasterNoCarryover(t *testing.T) {
	f := setupGenerationService()
	f.transactions.AddTransaction(&domain.Transaction{
		OwnerID:     testOwner,
		Amount:      dec("5000"),
		Direction:   domain.DirectionExpense,
		Date:        util.NormalizeAnchor(date(2024, 2, 20)),
		Category:    domain.CategoryHousing,
		PaymentMode: domain.SettlementImmediate,
	})

	result, err := f.service.GenerateOwner(context.Background(), testOwner, "2024-03")

	require.NoError(t, err)
	assert.Equal(t, 0, result.Carryovers)
}

func TestGenerationService_RunGenerationIsolatesOwners(t *testing.T) {
	const bob = "auth0|bob"
	const carol = "auth0|carol"
	f := setupGenerationService(testOwner, bob, carol)
	rules := map[string][]*domain.RecurringRule{
		testOwner: {ownedRule(testOwner, monthlyRule(5, date(2024, 1, 5)))},
		carol:     {ownedRule(carol, monthlyRule(6, date(2024, 1, 6)))},
	}
	f.rules.ListFn = func(ownerID string) ([]*domain.RecurringRule, error) {
		if ownerID == bob {
			return nil, errors.New("rules unavailable")
		}
		return rules[ownerID], nil
	}
	f.service.SetConcurrency(2)

	result, err := f.service.RunGeneration(context.Background(), "2024-04")

	require.NoError(t, err)
	assert.Equal(t, "2024-04", result.Month)
	assert.Equal(t, 3, result.Owners)
	assert.Equal(t, 2, result.Generated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], bob)

	carolRows, err := f.transactions.List(context.Background(), carol, nil)
	require.NoError(t, err)
	assert.Len(t, carolRows, 1)
}

func TestGenerationService_RunGenerationErrors(t *testing.T) {
	f := setupGenerationService(testOwner)

	_, err := f.service.RunGeneration(context.Background(), "2024-13")
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = f.service.GenerateOwner(context.Background(), testOwner, "March")
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = f.service.GenerateOwner(context.Background(), "", "2024-03")
	assert.ErrorIs(t, err, domain.ErrOwnerRequired)

	boom := errors.New("db down")
	f.owners.ListFn = func(ctx context.Context) ([]string, error) { return nil, boom }
	_, err = f.service.RunGeneration(context.Background(), "2024-03")
	assert.ErrorIs(t, err, boom)
}

func TestGenerationService_RunGenerationCanceled(t *testing.T) {
	f := setupGenerationService(testOwner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.RunGeneration(ctx, "2024-03")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerationService_PublishesCompletion(t *testing.T) {
	f := setupGenerationService()
	publisher := testutil.NewMockEventPublisher()
	f.service.SetEventPublisher(publisher)
	f.rules.AddRule(ownedRule(testOwner, monthlyRule(5, date(2024, 1, 5))))

	_, err := f.service.GenerateOwner(context.Background(), testOwner, "2024-04")
	require.NoError(t, err)
	_, err = f.service.GenerateOwner(context.Background(), testOwner, "2024-04")
	require.NoError(t, err)

	assert.Equal(t, []string{"generation.completed"}, publisher.Types(testOwner))
}
