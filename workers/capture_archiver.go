package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/camden-git/acnesense/media"
	"github.com/camden-git/acnesense/metrics"
	"github.com/camden-git/acnesense/models"
	"github.com/camden-git/acnesense/realtime"
)

const archiveJobTimeout = 2 * time.Minute

// AssetRecorder persists the archive state of a history's capture.
type AssetRecorder interface {
	MarkAssetProcessing(ctx context.Context, historyID uint) error
	UpsertAsset(ctx context.Context, asset *models.HistoryAsset) error
}

// ArchiveJob asks for the captured photo of a committed history to be archived.
type ArchiveJob struct {
	HistoryID uint
	UserID    uint
	Capture   string // base64, optionally a data URI
}

// CaptureArchiver stores captured photos and their thumbnails in the media
// store after the history has been committed. It never touches history or
// detail rows.
type CaptureArchiver struct {
	JobQueue chan ArchiveJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[uint]bool
	Mutex    sync.Mutex

	assets           AssetRecorder
	processor        *media.Processor
	publisher        realtime.Publisher
	metrics          *metrics.PipelineMetrics
	thumbnailMaxSize int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCaptureArchiver(assets AssetRecorder, processor *media.Processor, publisher realtime.Publisher, m *metrics.PipelineMetrics, thumbnailMaxSize, queueSize, numWorkers int) *CaptureArchiver {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	ca := &CaptureArchiver{
		JobQueue:         make(chan ArchiveJob, queueSize),
		StopChan:         make(chan struct{}),
		Pending:          make(map[uint]bool),
		assets:           assets,
		processor:        processor,
		publisher:        publisher,
		metrics:          m,
		thumbnailMaxSize: thumbnailMaxSize,
		ctx:              ctx,
		cancel:           cancel,
	}

	ca.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go ca.worker(i)
	}
	log.Printf("started %d capture archive worker(s) with queue size %d", numWorkers, queueSize)

	return ca
}

func (ca *CaptureArchiver) worker(id int) {
	defer ca.Wg.Done()
	for {
		select {
		case job, ok := <-ca.JobQueue:
			if !ok {
				log.Printf("archive worker %d stopping: job queue closed", id)
				return
			}
			ca.processJob(job)
			ca.Mutex.Lock()
			delete(ca.Pending, job.HistoryID)
			ca.metrics.SetArchiveQueueLength(len(ca.Pending))
			ca.Mutex.Unlock()

		case <-ca.StopChan:
			log.Printf("archive worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (ca *CaptureArchiver) processJob(job ArchiveJob) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ca.ctx, archiveJobTimeout)
	defer cancel()

	if err := ca.assets.MarkAssetProcessing(ctx, job.HistoryID); err != nil {
		// the history may have been deleted in the meantime
		log.Printf("archive: failed to mark history %d as processing: %v", job.HistoryID, err)
		ca.metrics.RecordArchiveJob(metrics.StatusError, 0)
		return
	}

	asset, err := ca.archive(ctx, job)
	if err != nil {
		log.Printf("ERROR archiving capture for history %d: %v", job.HistoryID, err)
		msg := err.Error()
		asset = &models.HistoryAsset{HistoryID: job.HistoryID, Status: models.AssetStatusError, Error: &msg}
	}
	now := time.Now().Unix()
	asset.ProcessedAt = &now

	if upsertErr := ca.assets.UpsertAsset(ctx, asset); upsertErr != nil {
		log.Printf("ERROR updating asset record for history %d: %v", job.HistoryID, upsertErr)
		ca.discard(asset)
		ca.metrics.RecordArchiveJob(metrics.StatusError, time.Since(start))
		return
	}

	event := realtime.Event{Type: realtime.EventAssetProcessed, HistoryID: job.HistoryID, Status: asset.Status}
	if err != nil {
		event.Error = err.Error()
		ca.metrics.RecordArchiveJob(metrics.StatusError, time.Since(start))
	} else {
		event.Extra = map[string]any{"thumbnail_path": *asset.ThumbnailPath}
		ca.metrics.RecordArchiveJob(metrics.StatusSuccess, time.Since(start))
		log.Printf("archive: stored capture for history %d in %s", job.HistoryID, time.Since(start))
	}
	if ca.publisher != nil {
		ca.publisher.Publish(job.UserID, event)
	}
}

func (ca *CaptureArchiver) archive(ctx context.Context, job ArchiveJob) (*models.HistoryAsset, error) {
	data, ext, err := media.DecodeCapture(job.Capture)
	if err != nil {
		return nil, err
	}
	meta := media.ReadCaptureMetadata(data)

	img, err := media.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	originalPath, err := ca.processor.ArchiveCapture(ctx, job.HistoryID, data, ext)
	if err != nil {
		return nil, err
	}

	thumbPath, err := ca.processor.GenerateThumbnail(ctx, job.HistoryID, img, ca.thumbnailMaxSize)
	if err != nil {
		ca.discard(&models.HistoryAsset{OriginalPath: &originalPath})
		return nil, fmt.Errorf("thumbnail: %w", err)
	}

	return &models.HistoryAsset{
		HistoryID:     job.HistoryID,
		OriginalPath:  &originalPath,
		ThumbnailPath: &thumbPath,
		Width:         meta.Width,
		Height:        meta.Height,
		TakenAt:       meta.TakenAt,
		Status:        models.AssetStatusDone,
	}, nil
}

// discard removes files written for an asset whose record could not be kept.
func (ca *CaptureArchiver) discard(asset *models.HistoryAsset) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range []*string{asset.OriginalPath, asset.ThumbnailPath} {
		if p == nil {
			continue
		}
		if err := ca.processor.Remove(ctx, *p); err != nil {
			log.Printf("archive: failed to remove orphaned asset %s: %v", *p, err)
		}
	}
}

// QueueJob schedules a capture for archiving. It returns false when the
// history is already pending or the queue is full.
func (ca *CaptureArchiver) QueueJob(job ArchiveJob) bool {
	ca.Mutex.Lock()
	if ca.Pending[job.HistoryID] {
		ca.Mutex.Unlock()
		log.Printf("capture archive for history %d already pending, skipping queue", job.HistoryID)
		return false
	}
	ca.Pending[job.HistoryID] = true
	ca.metrics.SetArchiveQueueLength(len(ca.Pending))
	ca.Mutex.Unlock()

	select {
	case ca.JobQueue <- job:
		return true
	default:
		log.Printf("WARNING: capture archive queue full, dropping job for history %d", job.HistoryID)
		ca.Mutex.Lock()
		delete(ca.Pending, job.HistoryID)
		ca.metrics.SetArchiveQueueLength(len(ca.Pending))
		ca.Mutex.Unlock()
		ca.metrics.RecordArchiveJob("dropped", 0)
		return false
	}
}

func (ca *CaptureArchiver) Stop() {
	log.Println("stopping capture archiver...")
	close(ca.StopChan)
	ca.cancel()
	ca.Wg.Wait()
	log.Println("all capture archive workers stopped")
}
