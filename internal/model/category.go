package model

import (
	"strings"
	"time"
)

// CategoryGroup buckets categories for budgeting.
type CategoryGroup string

// Category groups.
const (
	GroupEssential CategoryGroup = "Essential"
	GroupLifestyle CategoryGroup = "Lifestyle"
	GroupIncome    CategoryGroup = "Income"
	GroupTransfer  CategoryGroup = "Transfer"
	GroupOther     CategoryGroup = "Other"
)

// CategoryGroups lists the recognized groups.
var CategoryGroups = []CategoryGroup{GroupEssential, GroupLifestyle, GroupIncome, GroupTransfer, GroupOther}

// ParseCategoryGroup maps s onto a recognized group, falling back to Other.
func ParseCategoryGroup(s string) CategoryGroup {
	s = strings.TrimSpace(s)
	for _, g := range CategoryGroups {
		if strings.EqualFold(string(g), s) {
			return g
		}
	}
	return GroupOther
}

// Category is a classification target.
type Category struct {
	CreatedAt    time.Time
	Emoji        *string
	ParentID     *string
	BudgetAmount *int64
	ID           string
	Name         string
	Group        CategoryGroup
}
