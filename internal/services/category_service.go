package services

import (
	"context"
	"errors"
	"log/slog"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/validate"
)

// CategoryStore is the storage surface category operations use.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]core.Category, error)
	CategoryNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
}

type CategoryService struct {
	store       CategoryStore
	revalidator Revalidator
}

func NewCategoryService(store CategoryStore, revalidator Revalidator) *CategoryService {
	return &CategoryService{store: store, revalidator: revalidator}
}

func parseCategoryFields(props map[string]any, requireMsg string, r *validate.Result) (core.Category, bool) {
	if !validate.Require(props, r, requireMsg, "name", "type") {
		return core.Category{}, false
	}
	name, ok := validate.String(props, "name", "name must be a string", r)
	if !ok {
		return core.Category{}, false
	}
	typeName, ok := validate.String(props, "type", "type must be CREDIT or DEBIT", r)
	if !ok {
		return core.Category{}, false
	}
	t := core.CategoryType(typeName)
	if t != core.Credit && t != core.Debit {
		r.Add("type", "enum", "type must be CREDIT or DEBIT")
		return core.Category{}, false
	}

	description := ""
	if _, present := props["description"]; present {
		if description, ok = validate.String(props, "description", "description must be a string", r); !ok {
			return core.Category{}, false
		}
	}

	return core.Category{Name: name, Description: description, Type: t}, true
}

// CreateCategory validates the payload and stores one category.
func (s *CategoryService) CreateCategory(ctx context.Context, props any) (core.Category, error) {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "category creation requires name and type")
	if !ok {
		return core.Category{}, r.Err()
	}
	c, ok := parseCategoryFields(obj, "category creation requires name and type", &r)
	if !ok {
		return core.Category{}, r.Err()
	}
	if c.Name == "" {
		return core.Category{}, errors.New("name must not be empty")
	}

	exists, err := s.store.CategoryNameExists(ctx, c.Name, 0)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check category name", "name", c.Name, "error", err)
		return core.Category{}, ErrDatabaseUpdate
	}
	if exists {
		return core.Category{}, errors.New("a category with this name already exists")
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create category", "name", c.Name, "error", err)
		return core.Category{}, ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/categories")
	return created, nil
}

// UpdateCategory validates the payload and updates one category.
func (s *CategoryService) UpdateCategory(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "category update requires categoryId, name, and type")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "category update requires categoryId, name, and type", "categoryId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "categoryId", "category ID must be a number", &r)
	if !ok {
		return r.Err()
	}
	c, ok := parseCategoryFields(obj, "category update requires categoryId, name, and type", &r)
	if !ok {
		return r.Err()
	}
	c.ID = id

	exists, err := s.store.CategoryNameExists(ctx, c.Name, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check category name", "name", c.Name, "error", err)
		return ErrDatabaseUpdate
	}
	if exists {
		return errors.New("a category with this name already exists")
	}

	err = s.store.UpdateCategory(ctx, c)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("category not found")
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to update category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/categories")
	return nil
}

// DeleteCategory validates the payload and deletes one category.
func (s *CategoryService) DeleteCategory(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "category deletion requires categoryId")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "category deletion requires categoryId", "categoryId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "categoryId", "category ID must be a number", &r)
	if !ok {
		return r.Err()
	}

	err := s.store.DeleteCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("category not found")
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete category", "id", id, "error", err)
		return ErrDatabaseDelete
	}

	revalidate(ctx, s.revalidator, "/categories")
	return nil
}

// ListCategories returns every category for form dropdowns and the
// import wizard.
func (s *CategoryService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}
