package repository

import (
	"context"

	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/models"
)

// HistoryRepository defines the methods for detection history data operations.
// Not-found lookups return gorm.ErrRecordNotFound unwrapped.
type HistoryRepository interface {
	// Transaction runs fn against a repository bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(repo HistoryRepository) error) error

	CreateHistory(ctx context.Context, history *models.History) error
	CreateDetails(ctx context.Context, details []models.HistoryDetail) error
	GetByID(ctx context.Context, id uint) (*models.History, error)
	ListDetails(ctx context.Context, historyID uint) ([]models.HistoryDetail, error)
	ListSummaries(ctx context.Context, userID uint, sortOrder string, limit int) ([]database.HistorySummary, error)
	Delete(ctx context.Context, id uint) error

	// capture archive bookkeeping
	UpsertAsset(ctx context.Context, asset *models.HistoryAsset) error
	MarkAssetProcessing(ctx context.Context, historyID uint) error
	GetAsset(ctx context.Context, historyID uint) (*models.HistoryAsset, error)
}

// UserRepository defines the methods for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
