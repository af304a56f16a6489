package service

import (
	"context"
	"testing"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(scope string, permitted bool, created time.Time, reason *string) model.RestrictionRule {
	return model.RestrictionRule{
		ID:        uuid.New(),
		Scope:     scope,
		Permitted: permitted,
		Active:    true,
		Reason:    reason,
		CreatedAt: created,
	}
}

func TestResolveRules(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	t.Run("no rules allows", func(t *testing.T) {
		dec := resolveRules(nil)
		assert.True(t, dec.allowed)
		assert.Nil(t, dec.rule)
	})

	t.Run("product rule beats newer type rule", func(t *testing.T) {
		allowProduct := rule(model.ScopeProduct, true, t0, nil)
		denyType := rule(model.ScopeProductType, false, t1, ptr("no sweets"))
		dec := resolveRules([]model.RestrictionRule{denyType, allowProduct})
		assert.True(t, dec.allowed)
		assert.Equal(t, allowProduct.ID, dec.rule.ID)
	})

	t.Run("newest rule wins within a scope", func(t *testing.T) {
		older := rule(model.ScopeProductType, true, t0, nil)
		newer := rule(model.ScopeProductType, false, t1, ptr("doctor's note"))
		dec := resolveRules([]model.RestrictionRule{older, newer})
		assert.False(t, dec.allowed)
		assert.Equal(t, "doctor's note", *dec.reason)
	})

	t.Run("greatest id breaks ties", func(t *testing.T) {
		a := rule(model.ScopeProduct, true, t0, nil)
		b := rule(model.ScopeProduct, false, t0, nil)
		a.ID = uuid.MustParse("00000000-0000-4000-8000-00000000000a")
		b.ID = uuid.MustParse("00000000-0000-4000-8000-00000000000b")
		dec := resolveRules([]model.RestrictionRule{a, b})
		assert.Equal(t, b.ID, dec.rule.ID)
		assert.False(t, dec.allowed)
		assert.Equal(t, defaultDenyReason, *dec.reason)
	})
}

func TestCheck_AddAndDeactivate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "0", nil)
	sweets := e.seedType(t, "sweets")
	candy := e.seedProduct(t, sweets.ID, "2.00", 0, false)

	res, err := e.restrictions.Check(ctx, acc.ID, candy.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Nil(t, res.RuleID)

	deny, err := e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: acc.ID.String(), Scope: model.ScopeProductType, TargetID: sweets.ID.String(),
		Permitted: ptr(false), Reason: ptr("diabetic"),
	})
	require.NoError(t, err)

	res, err = e.restrictions.Check(ctx, acc.ID, candy.ID, nil)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "diabetic", *res.Reason)
	assert.Equal(t, deny.ID, *res.RuleID)

	// A product-level permission overrides the type denial.
	e.clock.Advance(time.Minute)
	_, err = e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: acc.ID.String(), Scope: model.ScopeProduct, TargetID: candy.ID.String(), Permitted: ptr(true),
	})
	require.NoError(t, err)
	res, err = e.restrictions.Check(ctx, acc.ID, candy.ID, &sweets.ID)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	rules, err := e.restrictions.ListRules(ctx, acc.ID, false)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, model.ScopeProduct, rules[0].Scope, "newest first")

	require.NoError(t, e.restrictions.DeactivateRule(ctx, uuid.MustParse(deny.ID)))
	active, err := e.restrictions.ListRules(ctx, acc.ID, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := e.restrictions.ListRules(ctx, acc.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAddRule_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "0", nil)

	_, err := e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: acc.ID.String(), Scope: model.ScopeProduct, TargetID: uuid.NewString(), Permitted: ptr(false),
	})
	requireKind(t, err, apperror.KindNotFound)

	_, err = e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: uuid.NewString(), Scope: model.ScopeProduct, TargetID: uuid.NewString(), Permitted: ptr(false),
	})
	requireKind(t, err, apperror.KindNotFound)

	_, err = e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: acc.ID.String(), Scope: "brand", TargetID: uuid.NewString(), Permitted: ptr(false),
	})
	requireKind(t, err, apperror.KindValidation)

	_, err = e.restrictions.AddRule(ctx, dto.AddRuleRequest{
		AccountID: acc.ID.String(), Scope: model.ScopeProduct, TargetID: uuid.NewString(),
	})
	requireKind(t, err, apperror.KindValidation)

	err = e.restrictions.DeactivateRule(ctx, uuid.New())
	requireKind(t, err, apperror.KindNotFound)
}
