package services

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/models"
	"github.com/camden-git/acnesense/repository"
)

// memoryRepo is an in-memory HistoryRepository with failure injection.
type memoryRepo struct {
	mu        sync.Mutex
	nextID    uint
	histories map[uint]models.History
	details   []models.HistoryDetail
	assets    map[uint]models.HistoryAsset

	failCreateHistory error
	failCreateDetails error
	getCalls          int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		histories: make(map[uint]models.History),
		assets:    make(map[uint]models.HistoryAsset),
	}
}

var _ repository.HistoryRepository = (*memoryRepo)(nil)

func (r *memoryRepo) Transaction(ctx context.Context, fn func(repo repository.HistoryRepository) error) error {
	r.mu.Lock()
	snapshotID := r.nextID
	histories := maps.Clone(r.histories)
	details := slices.Clone(r.details)
	assets := maps.Clone(r.assets)
	r.mu.Unlock()

	err := fn(r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.mu.Lock()
		r.nextID, r.histories, r.details, r.assets = snapshotID, histories, details, assets
		r.mu.Unlock()
	}
	return err
}

func (r *memoryRepo) CreateHistory(_ context.Context, h *models.History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateHistory != nil {
		return r.failCreateHistory
	}
	r.nextID++
	h.ID = r.nextID
	h.CreatedAt = time.Now()
	r.histories[h.ID] = *h
	return nil
}

func (r *memoryRepo) CreateDetails(_ context.Context, details []models.HistoryDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateDetails != nil {
		return r.failCreateDetails
	}
	for _, d := range details {
		d.ID = uint(len(r.details) + 1)
		r.details = append(r.details, d)
	}
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uint) (*models.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	h, ok := r.histories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &h, nil
}

func (r *memoryRepo) ListDetails(_ context.Context, historyID uint) ([]models.HistoryDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.HistoryDetail{}
	for _, d := range r.details {
		if d.HistoryID == historyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListSummaries(_ context.Context, userID uint, _ string, _ int) ([]database.HistorySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []database.HistorySummary{}
	for _, h := range r.histories {
		if h.UserID != userID {
			continue
		}
		out = append(out, database.HistorySummary{ID: h.ID, Title: h.Title, Overview: h.Overview, CreatedAt: h.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.histories[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.histories, id)
	delete(r.assets, id)
	r.details = slices.DeleteFunc(r.details, func(d models.HistoryDetail) bool { return d.HistoryID == id })
	return nil
}

func (r *memoryRepo) UpsertAsset(_ context.Context, asset *models.HistoryAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.HistoryID] = *asset
	return nil
}

func (r *memoryRepo) MarkAssetProcessing(ctx context.Context, historyID uint) error {
	return r.UpsertAsset(ctx, &models.HistoryAsset{HistoryID: historyID, Status: models.AssetStatusProcessing})
}

func (r *memoryRepo) GetAsset(_ context.Context, historyID uint) (*models.HistoryAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[historyID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *memoryRepo) counts() (histories, details int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.histories), len(r.details)
}

// blockingRepo parks the first ListDetails call until release is closed.
type blockingRepo struct {
	*memoryRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRepo() *blockingRepo {
	return &blockingRepo{
		memoryRepo: newMemoryRepo(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (r *blockingRepo) ListDetails(ctx context.Context, historyID uint) ([]models.HistoryDetail, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.memoryRepo.ListDetails(ctx, historyID)
}
