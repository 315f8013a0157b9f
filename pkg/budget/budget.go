// Package budget holds the view state for the budget management screen:
// category groups, their member categories, spent-to-date amounts and
// the ready-to-assign figure, plus per-group expand/collapse state.
package budget

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pfacil/pfacil/pkg/models"
)

// Ungrouped is the synthetic group key for categories without a group.
// Backend ids start at 1, so 0 is free.
const Ungrouped int64 = 0

// Gateway is the slice of the API client the budget screen uses.
type Gateway interface {
	Categories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, payload models.CategoryCreate) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, payload models.CategoryUpdate) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CategoryGroups(ctx context.Context) ([]models.CategoryGroup, error)
	CreateCategoryGroup(ctx context.Context, name string) ([]models.CategoryGroup, error)
	DeleteCategoryGroup(ctx context.Context, id int64) error
	SpentByCategory(ctx context.Context) (map[int64]float64, error)
	Budgets(ctx context.Context) ([]models.Budget, error)
	CreateBudget(ctx context.Context, payload models.BudgetCreate) (*models.Budget, error)
	ReadyToAssign(ctx context.Context) (float64, error)
}

// ErrEmptyName is the local required-field failure; nothing is sent.
var ErrEmptyName = errors.New("El nombre no puede estar vacío")

type View struct {
	gw     Gateway
	logger *log.Logger

	mu         sync.Mutex
	groups     []models.CategoryGroup
	categories []models.Category
	spent      map[int64]float64
	ready      float64
	expanded   map[int64]bool
}

func NewView(gw Gateway, logger *log.Logger) *View {
	return &View{
		gw:       gw,
		logger:   logger,
		spent:    make(map[int64]float64),
		expanded: make(map[int64]bool),
	}
}

// Refresh reloads groups, categories, spent amounts and the
// ready-to-assign figure. Expand/collapse state survives refreshes.
func (v *View) Refresh(ctx context.Context) error {
	groups, err := v.gw.CategoryGroups(ctx)
	if err != nil {
		return err
	}
	categories, err := v.gw.Categories(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.groups = groups
	v.categories = categories
	v.mu.Unlock()

	if err := v.refreshSpent(ctx); err != nil {
		return err
	}
	ready, err := v.gw.ReadyToAssign(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.ready = ready
	v.mu.Unlock()
	return nil
}

func (v *View) refreshSpent(ctx context.Context) error {
	spent, err := v.gw.SpentByCategory(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	if spent == nil {
		spent = make(map[int64]float64)
	}
	v.spent = spent
	v.mu.Unlock()
	return nil
}

func (v *View) Groups() []models.CategoryGroup {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.CategoryGroup, len(v.groups))
	copy(out, v.groups)
	return out
}

// CategoriesIn returns the categories of one group; Ungrouped selects
// the categories with no group.
func (v *View) CategoriesIn(groupID int64) []models.Category {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []models.Category
	for _, c := range v.categories {
		switch {
		case groupID == Ungrouped && c.GroupID == nil:
			out = append(out, c)
		case c.GroupID != nil && *c.GroupID == groupID:
			out = append(out, c)
		}
	}
	return out
}

func (v *View) Spent(categoryID int64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.spent[categoryID]
}

func (v *View) ReadyToAssign() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// Toggle flips a group's expanded state and reports the new value.
func (v *View) Toggle(groupID int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded[groupID] = !v.expanded[groupID]
	return v.expanded[groupID]
}

func (v *View) Expanded(groupID int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded[groupID]
}

// AddGroup creates a group. The backend answers with the authoritative
// group list, which replaces local state wholesale.
func (v *View) AddGroup(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	groups, err := v.gw.CreateCategoryGroup(ctx, name)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.groups = groups
	v.mu.Unlock()
	v.logger.Info("category group created", "name", name)
	return nil
}

// AddCategory creates a category inside groupID; Ungrouped leaves it
// without a group.
func (v *View) AddCategory(ctx context.Context, groupID int64, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	payload := models.CategoryCreate{Name: name, Type: "regular"}
	if groupID != Ungrouped {
		payload.GroupID = &groupID
	}
	category, err := v.gw.CreateCategory(ctx, payload)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.categories = append(v.categories, *category)
	v.mu.Unlock()
	v.logger.Info("category created", "name", name, "group", groupID)
	return nil
}

// EditCategory updates the estimated and/or assigned amounts and
// refreshes the spent figures, which the server may recompute. A nil
// amount is omitted from the payload and left untouched by the backend.
func (v *View) EditCategory(ctx context.Context, id int64, estimated, assigned *float64) error {
	payload := models.CategoryUpdate{EstimatedAmount: estimated, AssignedAmount: assigned}
	updated, err := v.gw.UpdateCategory(ctx, id, payload)
	if err != nil {
		return err
	}
	v.mu.Lock()
	for i := range v.categories {
		if v.categories[i].ID == id {
			v.categories[i] = *updated
			break
		}
	}
	v.mu.Unlock()
	return v.refreshSpent(ctx)
}

func (v *View) DeleteCategory(ctx context.Context, id int64) error {
	if err := v.gw.DeleteCategory(ctx, id); err != nil {
		return err
	}
	v.mu.Lock()
	kept := v.categories[:0]
	for _, c := range v.categories {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	v.categories = kept
	v.mu.Unlock()
	return v.refreshSpent(ctx)
}

// DeleteGroup removes the group and cascades to its member categories in
// client state, mirroring the server-side cascade.
func (v *View) DeleteGroup(ctx context.Context, id int64) error {
	if err := v.gw.DeleteCategoryGroup(ctx, id); err != nil {
		return err
	}
	v.mu.Lock()
	keptGroups := v.groups[:0]
	for _, g := range v.groups {
		if g.ID != id {
			keptGroups = append(keptGroups, g)
		}
	}
	v.groups = keptGroups

	keptCategories := v.categories[:0]
	for _, c := range v.categories {
		if c.GroupID == nil || *c.GroupID != id {
			keptCategories = append(keptCategories, c)
		}
	}
	v.categories = keptCategories
	delete(v.expanded, id)
	v.mu.Unlock()
	v.logger.Info("category group deleted", "id", id)
	return v.refreshSpent(ctx)
}

func (v *View) Budgets(ctx context.Context) ([]models.Budget, error) {
	return v.gw.Budgets(ctx)
}

func (v *View) CreateBudget(ctx context.Context, payload models.BudgetCreate) (*models.Budget, error) {
	return v.gw.CreateBudget(ctx, payload)
}
