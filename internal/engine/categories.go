package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/crzyc98/fintrak/internal/model"
	"github.com/crzyc98/fintrak/internal/service"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeCategoryName folds a category name for fuzzy comparison: lower
// case, single spaces, " & " spelled "and", and one trailing "s" removed
// unless the word ends in "ss". The plural rule is a heuristic; "Bus" and
// "Bu" compare equal.
func NormalizeCategoryName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " & ", " and ")
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		s = s[:len(s)-1]
	}
	return s
}

// categoryResolver maps AI-suggested category names to category IDs for one
// run, creating categories that do not exist yet.
type categoryResolver struct {
	store   service.CategoryStore
	byName  map[string]model.Category
	list    []model.Category
	created int
	dirty   bool
}

func newCategoryResolver(store service.CategoryStore, categories []model.Category) *categoryResolver {
	r := &categoryResolver{
		store:  store,
		byName: make(map[string]model.Category, len(categories)),
	}
	r.load(categories)
	return r
}

func (r *categoryResolver) load(categories []model.Category) {
	r.list = categories
	for _, cat := range categories {
		key := NormalizeCategoryName(cat.Name)
		if _, ok := r.byName[key]; !ok {
			r.byName[key] = cat
		}
	}
}

// Categories returns the categories known to the run, refreshed from the
// store when categories were created since the last call.
func (r *categoryResolver) Categories(ctx context.Context) ([]model.Category, error) {
	if !r.dirty {
		return r.list, nil
	}
	categories, err := r.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh categories: %w", err)
	}
	r.load(categories)
	r.dirty = false
	return r.list, nil
}

// Resolve returns the category matching name, creating it in group when no
// category with the same normalized name exists.
func (r *categoryResolver) Resolve(ctx context.Context, name, group string) (model.Category, error) {
	key := NormalizeCategoryName(name)
	if cat, ok := r.byName[key]; ok {
		return cat, nil
	}

	// Another writer may have added it since the run started.
	categories, err := r.store.GetCategories(ctx)
	if err != nil {
		return model.Category{}, fmt.Errorf("failed to load categories: %w", err)
	}
	r.load(categories)
	if cat, ok := r.byName[key]; ok {
		return cat, nil
	}

	cat := &model.Category{
		Name:  strings.TrimSpace(name),
		Group: model.ParseCategoryGroup(group),
	}
	if err := r.store.CreateCategory(ctx, cat); err != nil {
		return model.Category{}, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	r.byName[key] = *cat
	r.created++
	r.dirty = true
	return *cat, nil
}
