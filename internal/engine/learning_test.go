package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/storage"
	"github.com/crzyc98/fintrak/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectCategory_MerchantRule(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	coffee := db.MustGetCategory(testutil.CategoryCoffee)

	txn := testutil.WithMerchant(testutil.NewTransaction(1, "acc-1", "BLUE BOTTLE #42"), "Blue Bottle")
	shopping := db.MustGetCategory(testutil.CategoryShopping)
	txn.CategoryID = &shopping.ID
	txn.CategorizationSource = model.Ptr(model.SourceAI)
	txn.ConfidenceScore = model.Ptr(0.8)
	db.AddTransactions(txn)

	o := newTestOrchestrator(db, NewMockProvider(nil))

	correction, err := o.CorrectCategory(ctx, txn.ID, coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, coffee.Name, correction.Category.Name)
	require.NotNil(t, correction.Rule)
	assert.Equal(t, RuleKindMerchant, correction.Rule.Kind)
	assert.Equal(t, "blue bottle", correction.Rule.Pattern)

	got := db.MustGetTransaction(txn.ID)
	assert.Equal(t, coffee.ID, *got.CategoryID)
	assert.Equal(t, model.SourceManual, *got.CategorizationSource)
	assert.InDelta(t, 1.0, *got.ConfidenceScore, 0.0001)

	rule, err := db.Storage.FindMatchingRule(ctx, "Blue Bottle Coffee")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, coffee.ID, rule.CategoryID)
	assert.Equal(t, model.RuleSourceManual, rule.Source)
}

func TestCorrectCategory_Errors(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	coffee := db.MustGetCategory(testutil.CategoryCoffee)
	db.AddTransactions(testutil.NewTransaction(1, "acc-1", "SOMETHING"))

	o := newTestOrchestrator(db, NewMockProvider(nil))

	_, err := o.CorrectCategory(ctx, "missing", coffee.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = o.CorrectCategory(ctx, "txn-001", "no-such-category")
	require.ErrorIs(t, err, common.ErrNotFound)

	got := db.MustGetTransaction("txn-001")
	assert.Nil(t, got.CategoryID)
}

func TestLearnFromCorrection_DegeneratePatterns(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	shopping := db.MustGetCategory(testutil.CategoryShopping)
	o := newTestOrchestrator(db, nil)

	for _, description := range []string{"12345678", "AB 123456", "", "   "} {
		txn := testutil.NewTransaction(1, "acc-1", description)
		rule, err := o.LearnFromCorrection(ctx, txn, shopping.ID)
		require.NoError(t, err, description)
		assert.Nil(t, rule, description)
	}

	_, total, err := db.Storage.ListDescRules(ctx, model.RuleFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestLearnFromCorrection_StoreFailure(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	o := newTestOrchestrator(db, nil)

	txn := testutil.WithMerchant(testutil.NewTransaction(1, "acc-1", "NETFLIX"), "Netflix")
	rule, err := o.LearnFromCorrection(context.Background(), txn, "no-such-category")
	require.Error(t, err)
	assert.Nil(t, rule)
}

// failingRuleStore refuses to create merchant rules.
type failingRuleStore struct {
	*storage.SQLiteStorage
}

func (s *failingRuleStore) CreateMerchantRule(context.Context, *model.CategorizationRule) error {
	return errors.New("database is locked")
}

func TestCorrectCategory_LearningFailureIsReported(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	coffee := db.MustGetCategory(testutil.CategoryCoffee)
	db.AddTransactions(testutil.WithMerchant(testutil.NewTransaction(1, "acc-1", "BLUE BOTTLE #42"), "Blue Bottle"))

	o := New(&failingRuleStore{SQLiteStorage: db.Storage}, nil, nil, nil, DefaultConfig(), discardLogger())

	correction, err := o.CorrectCategory(ctx, "txn-001", coffee.ID)
	require.NoError(t, err)
	assert.True(t, correction.Changed)
	assert.Nil(t, correction.Rule)
	require.Error(t, correction.LearnErr)
	assert.Contains(t, correction.LearnErr.Error(), "database is locked")
	assert.Equal(t, coffee.ID, *db.MustGetTransaction("txn-001").CategoryID)
}

func TestCorrectCategory_UnchangedLearnsNothing(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.BasicCategories...)
	coffee := db.MustGetCategory(testutil.CategoryCoffee)

	txn := testutil.WithMerchant(testutil.NewTransaction(1, "acc-1", "BLUE BOTTLE #42"), "Blue Bottle")
	txn.CategoryID = &coffee.ID
	txn.CategorizationSource = model.Ptr(model.SourceAI)
	db.AddTransactions(txn)

	o := newTestOrchestrator(db, nil)

	correction, err := o.CorrectCategory(ctx, txn.ID, coffee.ID)
	require.NoError(t, err)
	assert.False(t, correction.Changed)
	assert.Nil(t, correction.Rule)
	assert.NoError(t, correction.LearnErr)

	rule, err := db.Storage.FindMatchingRule(ctx, "Blue Bottle")
	require.NoError(t, err)
	assert.Nil(t, rule)
	assert.Equal(t, model.SourceManual, *db.MustGetTransaction(txn.ID).CategorizationSource)
}

func TestAIRuleLearning(t *testing.T) {
	type expectation struct {
		merchantRules int
		descRules     int
	}

	tests := []struct {
		setup   func(t *testing.T, db *testutil.TestDB)
		check   func(t *testing.T, db *testutil.TestDB)
		respond func(PromptTransaction) map[string]any
		name    string
		txns    []model.Transaction
		want    expectation
	}{
		{
			name: "high confidence creates merchant rule",
			txns: []model.Transaction{testutil.NewTransaction(1, "acc-1", "BLUEBOTTLE 0042 OAKLAND")},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id":      pt.TransactionID,
					"category_name":       "Coffee",
					"normalized_merchant": "Blue Bottle Coffee",
					"confidence":          0.95,
				}
			},
			want: expectation{merchantRules: 1},
			check: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				rule, err := db.Storage.FindMatchingRule(context.Background(), "Blue Bottle Coffee")
				require.NoError(t, err)
				require.NotNil(t, rule)
				assert.Equal(t, "blue bottle coffee", rule.MerchantPattern)
				assert.Equal(t, model.RuleSourceAI, rule.Source)
				assert.Equal(t, db.MustGetCategory(testutil.CategoryCoffee).ID, rule.CategoryID)
			},
		},
		{
			name: "moderate confidence applies without a rule",
			txns: []model.Transaction{testutil.NewTransaction(1, "acc-1", "BLUEBOTTLE 0042 OAKLAND")},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id":      pt.TransactionID,
					"category_name":       "Coffee",
					"normalized_merchant": "Blue Bottle Coffee",
					"confidence":          0.75,
				}
			},
			want: expectation{},
			check: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				got := db.MustGetTransaction("txn-001")
				require.NotNil(t, got.CategoryID)
			},
		},
		{
			name: "existing manual rule is kept",
			setup: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				require.NoError(t, db.Storage.CreateMerchantRule(context.Background(), &model.CategorizationRule{
					MerchantPattern: "blue bottle",
					CategoryID:      db.MustGetCategory(testutil.CategoryFoodDining).ID,
				}))
			},
			txns: []model.Transaction{testutil.NewTransaction(1, "acc-1", "BLUEBOTTLE 0042 OAKLAND")},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id":      pt.TransactionID,
					"category_name":       "Coffee",
					"normalized_merchant": "Blue Bottle Coffee",
					"confidence":          0.97,
				}
			},
			want: expectation{merchantRules: 1},
			check: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				rule, err := db.Storage.FindMatchingRule(context.Background(), "Blue Bottle Coffee")
				require.NoError(t, err)
				require.NotNil(t, rule)
				assert.Equal(t, "blue bottle", rule.MerchantPattern)
				assert.Equal(t, model.RuleSourceManual, rule.Source)
			},
		},
		{
			name: "highest confidence wins for a shared merchant",
			txns: []model.Transaction{
				testutil.NewTransaction(1, "acc-1", "CORNER DELI 1001"),
				testutil.NewTransaction(2, "acc-1", "CORNER DELI 2002"),
			},
			respond: func(pt PromptTransaction) map[string]any {
				category, confidence := "Food & Dining", 0.92
				if pt.TransactionID == "txn-002" {
					category, confidence = "Groceries", 0.97
				}
				return map[string]any{
					"transaction_id":      pt.TransactionID,
					"category_name":       category,
					"normalized_merchant": "Corner Deli",
					"confidence":          confidence,
				}
			},
			want: expectation{merchantRules: 1},
			check: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				rule, err := db.Storage.FindMatchingRule(context.Background(), "Corner Deli")
				require.NoError(t, err)
				require.NotNil(t, rule)
				assert.Equal(t, db.MustGetCategory(testutil.CategoryGroceries).ID, rule.CategoryID)
			},
		},
		{
			name: "no merchant creates account-scoped description rule",
			txns: []model.Transaction{testutil.NewTransaction(1, "acc-1", "SPOTIFY USA 4455123")},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id": pt.TransactionID,
					"category_name":  "Subscriptions",
					"confidence":     0.93,
				}
			},
			want: expectation{descRules: 1},
			check: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				ctx := context.Background()
				rule, err := db.Storage.FindMatchingDescRule(ctx, "SPOTIFY USA 9911", "acc-1")
				require.NoError(t, err)
				require.NotNil(t, rule)
				assert.Equal(t, "spotify usa *", rule.DescriptionPattern)
				assert.Equal(t, model.RuleSourceAI, rule.Source)

				other, err := db.Storage.FindMatchingDescRule(ctx, "SPOTIFY USA 9911", "acc-2")
				require.NoError(t, err)
				assert.Nil(t, other)
			},
		},
		{
			name: "degenerate descriptions create no rule",
			txns: []model.Transaction{
				testutil.NewTransaction(1, "acc-1", "12345678"),
				testutil.NewTransaction(2, "acc-1", "AB 123456"),
			},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id": pt.TransactionID,
					"category_name":  "Shopping",
					"confidence":     0.99,
				}
			},
			want: expectation{},
		},
		{
			name: "enrichment of categorized transaction creates no rule",
			setup: func(t *testing.T, db *testutil.TestDB) {
				t.Helper()
				txn := testutil.NewTransaction(1, "acc-1", "NETFLIX.COM 8665797172")
				subscriptions := db.MustGetCategory(testutil.CategorySubscriptions)
				txn.CategoryID = &subscriptions.ID
				txn.CategorizationSource = model.Ptr(model.SourceImport)
				db.AddTransactions(txn)
			},
			respond: func(pt PromptTransaction) map[string]any {
				return map[string]any{
					"transaction_id":      pt.TransactionID,
					"category_name":       "Subscriptions",
					"normalized_merchant": "Netflix",
					"confidence":          0.99,
				}
			},
			want: expectation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := testutil.SetupTestDB(t, testutil.BasicCategories...)
			if tt.setup != nil {
				tt.setup(t, db)
			}
			if len(tt.txns) > 0 {
				db.AddTransactions(tt.txns...)
			}

			o := newTestOrchestrator(db, NewMockProvider(tt.respond))
			_, err := o.TriggerCategorization(ctx, Options{})
			require.NoError(t, err)

			_, merchantRules, err := db.Storage.ListMerchantRules(ctx, model.RuleFilter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want.merchantRules, merchantRules)

			_, descRules, err := db.Storage.ListDescRules(ctx, model.RuleFilter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want.descRules, descRules)

			if tt.check != nil {
				tt.check(t, db)
			}
		})
	}
}
