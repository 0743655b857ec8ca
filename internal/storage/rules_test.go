package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
)

func TestCreateMerchantRule_Upsert(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	coffee := createTestCategory(t, store, "Coffee", model.GroupLifestyle)
	dining := createTestCategory(t, store, "Dining", model.GroupLifestyle)

	rule := &model.CategorizationRule{MerchantPattern: "  Starbucks ", CategoryID: coffee.ID}
	require.NoError(t, store.CreateMerchantRule(ctx, rule))
	assert.Equal(t, "starbucks", rule.MerchantPattern)
	assert.Equal(t, model.RuleSourceManual, rule.Source)
	assert.Equal(t, "Coffee", rule.CategoryName)
	firstID := rule.ID

	again := &model.CategorizationRule{MerchantPattern: "STARBUCKS", CategoryID: dining.ID, Source: model.RuleSourceAI}
	require.NoError(t, store.CreateMerchantRule(ctx, again))
	assert.Equal(t, firstID, again.ID, "upsert keeps the row")
	assert.Equal(t, dining.ID, again.CategoryID)
	assert.Equal(t, model.RuleSourceAI, again.Source)

	n, err := store.CountMerchantRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateMerchantRule_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cat := createTestCategory(t, store, "Coffee", model.GroupLifestyle)

	assert.ErrorIs(t, store.CreateMerchantRule(ctx, nil), ErrNilParameter)
	assert.ErrorIs(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: " ", CategoryID: cat.ID}), ErrInvalidRule)
	assert.ErrorIs(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: "x", CategoryID: "missing"}), common.ErrNotFound)
	assert.ErrorIs(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: "x", CategoryID: cat.ID, Source: "robot"}), ErrInvalidRule)
}

func TestFindMatchingRule_NewestWins(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	coffee := createTestCategory(t, store, "Coffee", model.GroupLifestyle)
	groceries := createTestCategory(t, store, "Groceries", model.GroupEssential)

	require.NoError(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: "star", CategoryID: groceries.ID}))
	require.NoError(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: "starbucks", CategoryID: coffee.ID}))

	rule, err := store.FindMatchingRule(ctx, "STARBUCKS Reserve")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, coffee.ID, rule.CategoryID)

	rule, err = store.FindMatchingRule(ctx, "Starlight Diner")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, groceries.ID, rule.CategoryID)

	rule, err = store.FindMatchingRule(ctx, "Target")
	require.NoError(t, err)
	assert.Nil(t, rule)

	rule, err = store.FindMatchingRule(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestListAndDeleteMerchantRules(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	coffee := createTestCategory(t, store, "Coffee", model.GroupLifestyle)
	groceries := createTestCategory(t, store, "Groceries", model.GroupEssential)

	for _, p := range []string{"peets", "blue bottle", "safeway"} {
		catID := coffee.ID
		if p == "safeway" {
			catID = groceries.ID
		}
		require.NoError(t, store.CreateMerchantRule(ctx, &model.CategorizationRule{MerchantPattern: p, CategoryID: catID}))
	}

	rules, total, err := store.ListMerchantRules(ctx, model.RuleFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rules, 2)
	assert.Equal(t, "safeway", rules[0].MerchantPattern)
	assert.Equal(t, "blue bottle", rules[1].MerchantPattern)

	rules, total, err = store.ListMerchantRules(ctx, model.RuleFilter{CategoryID: coffee.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rules, 2)

	got, err := store.GetMerchantRule(ctx, rules[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rules[0].MerchantPattern, got.MerchantPattern)

	deleted, err := store.DeleteMerchantRule(ctx, rules[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteMerchantRule(ctx, rules[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.GetMerchantRule(ctx, rules[0].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDescRules_AccountScoped(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	transfer := createTestCategory(t, store, "Transfer", model.GroupTransfer)
	savings := createTestCategory(t, store, "Savings", model.GroupTransfer)

	rule := &model.DescriptionPatternRule{
		AccountID:          "checking",
		DescriptionPattern: "ONLINE TRANSFER TO *",
		CategoryID:         transfer.ID,
	}
	require.NoError(t, store.CreateDescRule(ctx, rule))
	assert.Equal(t, "online transfer to *", rule.DescriptionPattern)
	assert.Equal(t, "Transfer", rule.CategoryName)

	got, err := store.FindMatchingDescRule(ctx, "Online Transfer To SAV 99812", "checking")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, transfer.ID, got.CategoryID)

	got, err = store.FindMatchingDescRule(ctx, "Online Transfer To SAV 99812", "credit")
	require.NoError(t, err)
	assert.Nil(t, got, "rules never match other accounts")

	got, err = store.FindMatchingDescRule(ctx, "Wire transfer to SAV", "checking")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Same pattern in the same account is an upsert.
	require.NoError(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{
		AccountID:          "checking",
		DescriptionPattern: "online transfer to *",
		CategoryID:         savings.ID,
		Source:             model.RuleSourceAI,
	}))
	// Same pattern in another account is a separate rule.
	require.NoError(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{
		AccountID:          "credit",
		DescriptionPattern: "online transfer to *",
		CategoryID:         transfer.ID,
	}))

	n, err := store.CountDescRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = store.FindMatchingDescRule(ctx, "ONLINE TRANSFER TO SAV 1", "checking")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, savings.ID, got.CategoryID)
	assert.Equal(t, model.RuleSourceAI, got.Source)

	rules, total, err := store.ListDescRules(ctx, model.RuleFilter{AccountID: "credit"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rules, 1)

	deleted, err := store.DeleteDescRule(ctx, rules[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetDescRule(ctx, rules[0].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDescRules_NewestWins(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	a := createTestCategory(t, store, "A", model.GroupOther)
	b := createTestCategory(t, store, "B", model.GroupOther)

	require.NoError(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{
		AccountID: "acct", DescriptionPattern: "zelle *", CategoryID: a.ID,
	}))
	require.NoError(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{
		AccountID: "acct", DescriptionPattern: "zelle payment *", CategoryID: b.ID,
	}))

	got, err := store.FindMatchingDescRule(ctx, "ZELLE PAYMENT JOHN", "acct")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.CategoryID)
}

func TestCreateDescRule_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cat := createTestCategory(t, store, "A", model.GroupOther)

	assert.ErrorIs(t, store.CreateDescRule(ctx, nil), ErrNilParameter)
	assert.ErrorIs(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{DescriptionPattern: "x", CategoryID: cat.ID}), ErrEmptyString)
	assert.ErrorIs(t, store.CreateDescRule(ctx, &model.DescriptionPatternRule{AccountID: "a", CategoryID: cat.ID}), ErrInvalidRule)
}
