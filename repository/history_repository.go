package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/models"
)

// detail rows carry base64 crops, so they are inserted in small batches
const detailBatchSize = 50

var _ HistoryRepository = (*GormHistoryRepository)(nil)

// GormHistoryRepository handles database operations for History entities
type GormHistoryRepository struct {
	db     *gorm.DB
	driver string
}

// NewGormHistoryRepository creates a new instance of GormHistoryRepository.
// driver selects the placeholder style of the raw summary query.
func NewGormHistoryRepository(db *gorm.DB, driver string) *GormHistoryRepository {
	return &GormHistoryRepository{db: db, driver: driver}
}

func (r *GormHistoryRepository) Transaction(ctx context.Context, fn func(repo HistoryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormHistoryRepository{db: tx, driver: r.driver})
	})
}

// CreateHistory inserts the history row and fills in its ID and CreatedAt.
func (r *GormHistoryRepository) CreateHistory(ctx context.Context, history *models.History) error {
	// associations are written explicitly by the caller
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(history).Error
	if err != nil {
		return fmt.Errorf("failed to create history %q: %w", history.Title, err)
	}
	return nil
}

// CreateDetails inserts all detail rows. An empty slice is a no-op.
func (r *GormHistoryRepository) CreateDetails(ctx context.Context, details []models.HistoryDetail) error {
	if len(details) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).CreateInBatches(&details, detailBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to create %d details for history %d: %w", len(details), details[0].HistoryID, err)
	}
	return nil
}

// GetByID retrieves a history record by its ID
func (r *GormHistoryRepository) GetByID(ctx context.Context, id uint) (*models.History, error) {
	var history models.History
	err := r.db.WithContext(ctx).First(&history, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get history by ID %d: %w", id, err)
	}
	return &history, nil
}

// ListDetails returns the detail rows of a history in insertion order.
func (r *GormHistoryRepository) ListDetails(ctx context.Context, historyID uint) ([]models.HistoryDetail, error) {
	details := []models.HistoryDetail{}
	err := r.db.WithContext(ctx).Where("history_id = ?", historyID).Order("id ASC").Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list details for history %d: %w", historyID, err)
	}
	return details, nil
}

func (r *GormHistoryRepository) ListSummaries(ctx context.Context, userID uint, sortOrder string, limit int) ([]database.HistorySummary, error) {
	return database.ListHistorySummaries(ctx, r.db.Statement.ConnPool, r.driver, userID, sortOrder, limit)
}

// Delete removes a history together with its details and asset row.
func (r *GormHistoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("history_id = ?", id).Delete(&models.HistoryDetail{}).Error; err != nil {
			return fmt.Errorf("failed to delete details for history %d: %w", id, err)
		}
		if err := tx.Where("history_id = ?", id).Delete(&models.HistoryAsset{}).Error; err != nil {
			return fmt.Errorf("failed to delete asset for history %d: %w", id, err)
		}
		result := tx.Delete(&models.History{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete history %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// UpsertAsset creates or fully replaces the asset row of a history.
func (r *GormHistoryRepository) UpsertAsset(ctx context.Context, asset *models.HistoryAsset) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "history_id"}},
		UpdateAll: true,
	}).Create(asset).Error
	if err != nil {
		return fmt.Errorf("failed to upsert asset for history %d: %w", asset.HistoryID, err)
	}
	return nil
}

func (r *GormHistoryRepository) MarkAssetProcessing(ctx context.Context, historyID uint) error {
	return r.UpsertAsset(ctx, &models.HistoryAsset{HistoryID: historyID, Status: models.AssetStatusProcessing})
}

func (r *GormHistoryRepository) GetAsset(ctx context.Context, historyID uint) (*models.HistoryAsset, error) {
	var asset models.HistoryAsset
	if err := r.db.WithContext(ctx).Where("history_id = ?", historyID).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}
