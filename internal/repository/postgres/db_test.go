package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dankozobeats/voicetracker-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericConversion(t *testing.T) {
	for _, raw := range []string{"0", "80", "254.50", "1234567.89", "-45.5"} {
		num, err := decimalToPgNumeric(decimal.RequireFromString(raw))
		require.NoError(t, err)

		got := pgNumericToDecimal(num)
		assert.True(t, decimal.RequireFromString(raw).Equal(got), "%s round-trips as %s", raw, got)
	}

	assert.True(t, pgNumericToDecimal(pgtype.Numeric{}).IsZero())
}

func TestLinkColumns(t *testing.T) {
	kind, source, period := linkColumns(nil)
	assert.Nil(t, kind)
	assert.Nil(t, source)
	assert.Nil(t, period)

	kind, source, period = linkColumns(&domain.TransactionLink{Kind: domain.LinkCarryover, SourceID: "2024-02", Period: "2024-03"})
	assert.Equal(t, "carryover", *kind)
	assert.Equal(t, "2024-02", *source)
	assert.Equal(t, "2024-03", *period)
}

func TestErrorMapping(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows, domain.ErrRuleNotFound), domain.ErrRuleNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other, domain.ErrRuleNotFound))

	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(other))
}

func TestSchemaDeclaresLinkIndex(t *testing.T) {
	assert.Contains(t, schema, "idx_transactions_link")
	assert.Contains(t, schema, "(owner_id, link_kind, link_source_id, link_period)")
}
