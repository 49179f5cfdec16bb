package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/detection"
	"github.com/camden-git/acnesense/media"
	"github.com/camden-git/acnesense/metrics"
	"github.com/camden-git/acnesense/models"
	"github.com/camden-git/acnesense/realtime"
	"github.com/camden-git/acnesense/repository"
	"github.com/camden-git/acnesense/utils"
	"github.com/camden-git/acnesense/workers"
)

// RenderMode selects how report sections are returned.
type RenderMode int

const (
	// RenderMarkdown returns sections exactly as stored.
	RenderMarkdown RenderMode = iota
	// RenderHTML converts each section from markdown to HTML.
	RenderHTML
)

// ReportOptions tunes DetectionService.Report.
type ReportOptions struct {
	Render RenderMode
}

// Archiver queues post-commit capture archiving.
type Archiver interface {
	QueueJob(job workers.ArchiveJob) bool
}

// DetectionService runs the save pipeline and the read side of detection
// history on top of a HistoryRepository.
type DetectionService struct {
	repo      repository.HistoryRepository
	store     media.Store
	archiver  Archiver
	publisher realtime.Publisher
	metrics   *metrics.PipelineMetrics
	reports   *cache.Cache
}

// DefaultReportCacheTTL is used when a non-positive report TTL is given.
const DefaultReportCacheTTL = 10 * time.Minute

// NewDetectionService creates the service. store, archiver and publisher may
// be nil, in which case archiving, file cleanup and events are skipped.
func NewDetectionService(
	repo repository.HistoryRepository,
	store media.Store,
	archiver Archiver,
	publisher realtime.Publisher,
	m *metrics.PipelineMetrics,
	reportTTL time.Duration,
) *DetectionService {
	if reportTTL <= 0 {
		log.Printf("detection: invalid report cache TTL %s, using %s", reportTTL, DefaultReportCacheTTL)
		reportTTL = DefaultReportCacheTTL
	}
	return &DetectionService{
		repo:      repo,
		store:     store,
		archiver:  archiver,
		publisher: publisher,
		metrics:   m,
		reports:   cache.New(reportTTL, 2*reportTTL),
	}
}

// Save validates a submission, splits its recommendation and writes the
// history with all of its details in one transaction. Nothing is written
// when validation or parsing fails, and a storage failure leaves no partial
// records behind.
func (s *DetectionService) Save(ctx context.Context, userID uint, sub *detection.Submission) (*models.History, error) {
	start := time.Now()

	if err := sub.Validate(); err != nil {
		s.metrics.RecordSubmission(metrics.StatusValidationError, 0, 0, "")
		return nil, err
	}

	sections, err := sub.Sections()
	if err != nil {
		s.metrics.RecordSubmission(metrics.StatusParseError, 0, 0, "")
		return nil, err
	}

	var history *models.History
	var details []models.HistoryDetail
	err = s.repo.Transaction(ctx, func(tx repository.HistoryRepository) error {
		h := detection.NewHistory(userID, sub, sections)
		if err := tx.CreateHistory(ctx, h); err != nil {
			return &detection.StorageError{Op: "create history", Err: err}
		}
		details = detection.BuildDetails(h.ID, sub)
		if err := tx.CreateDetails(ctx, details); err != nil {
			return &detection.StorageError{Op: "create details", Err: err}
		}
		history = h
		return nil
	})
	if err != nil {
		var storageErr *detection.StorageError
		if !errors.As(err, &storageErr) {
			err = &detection.StorageError{Op: "commit", Err: err}
		}
		log.Printf("detection: failed to save submission for user %d: %v", userID, err)
		s.metrics.RecordSubmission(metrics.StatusStorageError, 0, 0, "")
		return nil, err
	}

	source := "text"
	if sub.RecommendationSections != nil {
		source = "structured"
	}
	s.metrics.RecordSubmission(metrics.StatusSuccess, time.Since(start), len(details), source)
	log.Printf("detection: saved history %d with %d detail(s) for user %d", history.ID, len(details), userID)

	// sqlite may hand out the id of a deleted row again
	s.reports.Delete(deletedCacheKey(history.ID))
	s.publish(userID, realtime.Event{Type: realtime.EventHistoryCreated, HistoryID: history.ID})
	if s.archiver != nil {
		s.archiver.QueueJob(workers.ArchiveJob{HistoryID: history.ID, UserID: userID, Capture: sub.CapturedImage})
	}

	history.Details = details
	return history, nil
}

// Report assembles the presentation view of one history owned by userID.
// Missing records and records of other users both yield detection.ErrNotFound.
func (s *DetectionService) Report(ctx context.Context, userID, historyID uint, opts ReportOptions) (*detection.Report, error) {
	report, err := s.assembledReport(ctx, historyID)
	if err == nil && report.UserID != userID {
		err = fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
	}
	if err != nil {
		if errors.Is(err, detection.ErrNotFound) {
			s.metrics.RecordReport(metrics.StatusNotFound)
		} else {
			s.metrics.RecordReport(metrics.StatusError)
		}
		return nil, err
	}

	render := keepSection
	if opts.Render == RenderHTML {
		render = utils.RenderMarkdown
	}
	out, err := report.RenderSections(render)
	if err != nil {
		s.metrics.RecordReport(metrics.StatusError)
		return nil, err
	}
	s.metrics.RecordReport(metrics.StatusSuccess)
	return out, nil
}

func keepSection(section string) (string, error) {
	return section, nil
}

// assembledReport returns the raw report of a history, from the cache when
// possible. Cached reports must not be modified.
func (s *DetectionService) assembledReport(ctx context.Context, historyID uint) (*detection.Report, error) {
	if s.deleted(historyID) {
		return nil, fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
	}
	key := reportCacheKey(historyID)
	if cached, ok := s.reports.Get(key); ok {
		s.metrics.RecordReportCache(true)
		return cached.(*detection.Report), nil
	}
	s.metrics.RecordReportCache(false)

	history, err := s.repo.GetByID(ctx, historyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
		}
		return nil, &detection.StorageError{Op: "load history", Err: err}
	}

	details, err := s.repo.ListDetails(ctx, historyID)
	if err != nil {
		return nil, &detection.StorageError{Op: "load details", Err: err}
	}

	report := detection.AssembleReport(history, details)
	s.reports.SetDefault(key, report)
	// Delete marks before it evicts, so a load that raced a delete is dropped here
	if s.deleted(historyID) {
		s.reports.Delete(key)
		return nil, fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
	}
	return report, nil
}

// List returns the user's history summaries with a plain-text overview
// preview. Unknown sort orders fall back to newest first.
func (s *DetectionService) List(ctx context.Context, userID uint, sortOrder string) ([]database.HistorySummary, error) {
	if !database.IsValidSortOrder(sortOrder) {
		sortOrder = database.DefaultSortOrder
	}
	s.metrics.RecordList(sortOrder)

	summaries, err := s.repo.ListSummaries(ctx, userID, sortOrder, 0)
	if err != nil {
		return nil, &detection.StorageError{Op: "list history", Err: err}
	}
	for i := range summaries {
		summaries[i].Preview = utils.PlainPreview(summaries[i].Overview, utils.PreviewWordLimit)
	}
	return summaries, nil
}

// Delete removes one history owned by userID together with its details,
// asset record and archived files.
func (s *DetectionService) Delete(ctx context.Context, userID, historyID uint) error {
	history, err := s.repo.GetByID(ctx, historyID)
	if err == nil && history.UserID != userID {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.RecordDeletion(metrics.StatusNotFound)
			return fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
		}
		s.metrics.RecordDeletion(metrics.StatusStorageError)
		return &detection.StorageError{Op: "load history", Err: err}
	}

	asset, err := s.repo.GetAsset(ctx, historyID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("detection: failed to load asset of history %d before delete: %v", historyID, err)
	}

	s.reports.SetDefault(deletedCacheKey(historyID), true)
	if err := s.repo.Delete(ctx, historyID); err != nil {
		s.reports.Delete(deletedCacheKey(historyID))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.RecordDeletion(metrics.StatusNotFound)
			return fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
		}
		s.metrics.RecordDeletion(metrics.StatusStorageError)
		return &detection.StorageError{Op: "delete history", Err: err}
	}
	s.reports.Delete(reportCacheKey(historyID))

	if asset != nil && s.store != nil {
		for _, p := range []*string{asset.OriginalPath, asset.ThumbnailPath} {
			if p == nil {
				continue
			}
			if err := s.store.Delete(ctx, *p); err != nil {
				log.Printf("detection: failed to remove asset %s of history %d: %v", *p, historyID, err)
			}
		}
	}

	s.metrics.RecordDeletion(metrics.StatusSuccess)
	s.publish(userID, realtime.Event{Type: realtime.EventHistoryDeleted, HistoryID: historyID})
	log.Printf("detection: deleted history %d of user %d", historyID, userID)
	return nil
}

// CheckOwnership returns detection.ErrNotFound unless historyID exists and
// belongs to userID.
func (s *DetectionService) CheckOwnership(ctx context.Context, userID, historyID uint) error {
	if s.deleted(historyID) {
		return fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
	}
	if report, ok := s.reports.Get(reportCacheKey(historyID)); ok && report.(*detection.Report).UserID == userID {
		return nil
	}
	history, err := s.repo.GetByID(ctx, historyID)
	if err == nil && history.UserID != userID {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", detection.ErrNotFound, historyID)
		}
		return &detection.StorageError{Op: "load history", Err: err}
	}
	return nil
}

func (s *DetectionService) publish(userID uint, event realtime.Event) {
	if s.publisher != nil {
		s.publisher.Publish(userID, event)
	}
}

func reportCacheKey(historyID uint) string {
	return strconv.FormatUint(uint64(historyID), 10)
}

// deletedCacheKey marks a history removed by Delete. The marker outlives any
// report load that started before the delete.
func deletedCacheKey(historyID uint) string {
	return "deleted:" + reportCacheKey(historyID)
}

func (s *DetectionService) deleted(historyID uint) bool {
	_, ok := s.reports.Get(deletedCacheKey(historyID))
	return ok
}
