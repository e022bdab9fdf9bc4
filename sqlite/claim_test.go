package sqlite_test

import (
	"context"
	"testing"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimService_CreateClaim(t *testing.T) {
	t.Parallel()

	t.Run("creates claim with generated ID and timestamp", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		rec := insertTestRecord(t, db, "https://example.se/a", "text")
		svc := sqlite.NewClaimService(db)
		ctx := context.Background()

		claim := &smbintel.CandidateClaim{
			Fingerprint:   rec.Fingerprint,
			SignalType:    smbintel.SignalJobPosting,
			Quote:         "vi söker en ekonomiassistent",
			PersonName:    "Anna Berg",
			PersonTitle:   "VD",
			PersonCompany: "Berg Bygg AB",
			Problem:       "manuell fakturering",
		}
		require.NoError(t, svc.CreateClaim(ctx, claim))
		assert.NotEmpty(t, claim.ID)
		assert.False(t, claim.CreatedAt.IsZero())

		got, err := svc.FindClaimByID(ctx, claim.ID)
		require.NoError(t, err)
		assert.Equal(t, claim.Quote, got.Quote)
		assert.Equal(t, smbintel.SignalJobPosting, got.SignalType)
		assert.Equal(t, "Berg Bygg AB", got.Company())
	})

	t.Run("returns error for invalid claim", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewClaimService(db)

		err := svc.CreateClaim(context.Background(), &smbintel.CandidateClaim{Fingerprint: "x"})
		require.Error(t, err)
		assert.Equal(t, smbintel.EINVALID, smbintel.ErrorCode(err))
	})

	t.Run("rejects claim for unknown record", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewClaimService(db)

		err := svc.CreateClaim(context.Background(), &smbintel.CandidateClaim{Fingerprint: "unknown", Quote: "q"})
		require.Error(t, err)
	})
}

func TestClaimService_FindClaimByID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := sqlite.NewClaimService(db).FindClaimByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, smbintel.ENOTFOUND, smbintel.ErrorCode(err))
}

func TestClaimService_FindClaims(t *testing.T) {
	t.Parallel()

	t.Run("filters by fingerprint", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		a := insertTestRecord(t, db, "https://example.se/a", "text a")
		b := insertTestRecord(t, db, "https://example.se/b", "text b")
		insertTestClaim(t, db, a, "", "", "one")
		insertTestClaim(t, db, a, "", "", "two")
		insertTestClaim(t, db, b, "", "", "three")

		claims, err := sqlite.NewClaimService(db).FindClaims(context.Background(),
			smbintel.ClaimFilter{Fingerprint: &a.Fingerprint})
		require.NoError(t, err)
		require.Len(t, claims, 2)
		assert.Equal(t, "one", claims[0].Quote)
		assert.Equal(t, "two", claims[1].Quote)
	})

	t.Run("unverified includes retryable latest results", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		rec := insertTestRecord(t, db, "https://example.se/a", "text")
		fresh := insertTestClaim(t, db, rec, "", "", "fresh")
		done := insertTestClaim(t, db, rec, "", "", "done")
		retry := insertTestClaim(t, db, rec, "", "", "retry")
		retried := insertTestClaim(t, db, rec, "", "", "retried")

		vs := sqlite.NewVerificationService(db)
		ctx := context.Background()
		require.NoError(t, vs.CreateVerification(ctx, testResult(done.ID, smbintel.StatusVerified, false)))
		require.NoError(t, vs.CreateVerification(ctx, testResult(retry.ID, smbintel.StatusWeak, true)))
		require.NoError(t, vs.CreateVerification(ctx, testResult(retried.ID, smbintel.StatusWeak, true)))
		require.NoError(t, vs.CreateVerification(ctx, testResult(retried.ID, smbintel.StatusVerified, false)))

		claims, err := sqlite.NewClaimService(db).FindClaims(ctx, smbintel.ClaimFilter{Unverified: true})
		require.NoError(t, err)

		var ids []string
		for _, c := range claims {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []string{fresh.ID, retry.ID}, ids)
	})

	t.Run("applies pagination", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		rec := insertTestRecord(t, db, "https://example.se/a", "text")
		for _, q := range []string{"a", "b", "c"} {
			insertTestClaim(t, db, rec, "", "", q)
		}

		claims, err := sqlite.NewClaimService(db).FindClaims(context.Background(),
			smbintel.ClaimFilter{Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, "b", claims[0].Quote)
	})
}
