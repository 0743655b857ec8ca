// Package testutil provides shared fixtures for tests that need a migrated
// store.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/storage"
)

// CategoryName names a seeded test category.
type CategoryName string

// Common category names used across tests.
const (
	CategoryGroceries     CategoryName = "Groceries"
	CategoryFoodDining    CategoryName = "Food & Dining"
	CategoryCoffee        CategoryName = "Coffee"
	CategoryShopping      CategoryName = "Shopping"
	CategoryIncome        CategoryName = "Income"
	CategoryUtilities     CategoryName = "Utilities"
	CategorySubscriptions CategoryName = "Subscriptions"
)

// BasicCategories is the category set most tests seed.
var BasicCategories = []CategoryName{
	CategoryGroceries,
	CategoryFoodDining,
	CategoryCoffee,
	CategoryShopping,
	CategoryIncome,
	CategoryUtilities,
	CategorySubscriptions,
}

var categoryGroups = map[CategoryName]model.CategoryGroup{
	CategoryGroceries:     model.GroupEssential,
	CategoryUtilities:     model.GroupEssential,
	CategoryIncome:        model.GroupIncome,
	CategoryFoodDining:    model.GroupLifestyle,
	CategoryCoffee:        model.GroupLifestyle,
	CategoryShopping:      model.GroupLifestyle,
	CategorySubscriptions: model.GroupLifestyle,
}

// TestDB is a migrated in-memory store with seeded categories.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	categories map[CategoryName]model.Category
}

// SetupTestDB creates a migrated in-memory store seeded with cats. The store
// is closed when the test ends.
func SetupTestDB(t *testing.T, cats ...CategoryName) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage:    store,
		t:          t,
		categories: make(map[CategoryName]model.Category, len(cats)),
	}
	for _, name := range cats {
		db.AddCategory(name)
	}
	return db
}

// AddCategory creates a category, grouped as Other unless it is a known name.
func (db *TestDB) AddCategory(name CategoryName) model.Category {
	db.t.Helper()

	group, ok := categoryGroups[name]
	if !ok {
		group = model.GroupOther
	}
	cat := &model.Category{Name: string(name), Group: group}
	if err := db.Storage.CreateCategory(context.Background(), cat); err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	db.categories[name] = *cat
	return *cat
}

// MustGetCategory returns a seeded category or fails the test.
func (db *TestDB) MustGetCategory(name CategoryName) model.Category {
	db.t.Helper()
	cat, ok := db.categories[name]
	if !ok {
		db.t.Fatalf("category %q not seeded", name)
	}
	return cat
}

// AddTransactions saves txns or fails the test.
func (db *TestDB) AddTransactions(txns ...model.Transaction) {
	db.t.Helper()
	if err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to save transactions: %v", err)
	}
}

// MustGetTransaction reloads a transaction or fails the test.
func (db *TestDB) MustGetTransaction(id string) model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransactionByID(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get transaction %s: %v", id, err)
	}
	return *txn
}

var baseDate = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

// NewTransaction returns an uncategorized expense in accountID. Later n
// values get later dates.
func NewTransaction(n int, accountID, description string) model.Transaction {
	return model.Transaction{
		ID:                  fmt.Sprintf("txn-%03d", n),
		AccountID:           accountID,
		Date:                baseDate.AddDate(0, 0, n),
		Description:         description,
		OriginalDescription: description,
		Amount:              -int64(100 * (n + 1)),
	}
}

// WithMerchant sets the normalized merchant of txn.
func WithMerchant(txn model.Transaction, merchant string) model.Transaction {
	txn.NormalizedMerchant = &merchant
	return txn
}

// Transactions returns count uncategorized transactions in accountID with
// distinct descriptions.
func Transactions(count int, accountID string) []model.Transaction {
	txns := make([]model.Transaction, count)
	for i := range txns {
		txns[i] = NewTransaction(i, accountID, fmt.Sprintf("PURCHASE STORE %c%c", 'A'+rune(i/26%26), 'A'+rune(i%26)))
	}
	return txns
}
