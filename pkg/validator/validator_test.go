package validator

import (
	"testing"

	"go-pos-admin/internal/model"
	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID      uuid.UUID `validate:"uuid_required"`
	Tier    string    `validate:"omitempty,tier"`
	Reason  string    `validate:"refund_reason"`
	Payment string    `validate:"payment_method"`
}

func TestCustomRules(t *testing.T) {
	ok := sample{ID: uuid.New(), Tier: "GOLD", Payment: "qris"}
	require.Empty(t, ValidateStruct(ok))
	require.NoError(t, Check(ok))

	bad := sample{Tier: "DIAMOND", Reason: "lost", Payment: "cheque"}
	errs := ValidateStruct(bad)
	require.Len(t, errs, 4)

	err := Check(bad)
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	require.Contains(t, err.Error(), "sample.ID failed on uuid_required")
}

func TestCustomerPatchTier(t *testing.T) {
	bogus := model.Tier("DIAMOND")
	require.Error(t, Check(model.CustomerPatch{Tier: &bogus}))

	gold := model.TierGold
	require.NoError(t, Check(model.CustomerPatch{Tier: &gold}))
}
