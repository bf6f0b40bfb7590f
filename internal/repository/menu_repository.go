package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/domain"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// MenuBackend persists the ticket menu. LoadMenu returns nil when nothing
// has been saved.
type MenuBackend interface {
	LoadMenu(ctx context.Context) (*domain.MenuConfig, error)
	SaveMenu(ctx context.Context, menu domain.MenuConfig) error
}

// MenuRepository reads and appends to the menu configuration.
type MenuRepository struct {
	mu                sync.Mutex
	backend           MenuBackend
	defaultCategoryID string
	logger            *zap.Logger
}

// NewMenuRepository builds a repository that falls back to defaultCategoryID.
func NewMenuRepository(backend MenuBackend, defaultCategoryID string, logger *zap.Logger) *MenuRepository {
	return &MenuRepository{
		backend:           backend,
		defaultCategoryID: defaultCategoryID,
		logger:            logger.Named("menu_repository"),
	}
}

// Get returns the stored menu, or the empty default when it is missing or unreadable.
func (r *MenuRepository) Get(ctx context.Context) domain.MenuConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

// AppendButton adds button to the end of the menu. Duplicates are kept.
func (r *MenuRepository) AppendButton(ctx context.Context, button domain.MenuButton) (domain.MenuConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	menu := r.loadLocked(ctx)
	menu.Buttons = append(menu.Buttons, button)
	if err := r.backend.SaveMenu(ctx, menu); err != nil {
		r.logger.Error("menu save failed", zap.Error(err))
		return menu, apperrors.NewStoreIOError("save ticket menu", err)
	}
	return menu, nil
}

func (r *MenuRepository) loadLocked(ctx context.Context) domain.MenuConfig {
	menu, err := r.backend.LoadMenu(ctx)
	if err != nil {
		r.logger.Error("menu unreadable; using defaults", zap.Error(err))
	}
	if menu == nil {
		return domain.MenuConfig{Buttons: []domain.MenuButton{}, CategoryID: r.defaultCategoryID}
	}
	if menu.CategoryID == "" {
		menu.CategoryID = r.defaultCategoryID
	}
	return *menu
}
