package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// RebuildRequest asks for a rebuild of the whole index from the PDFs on disk.
type RebuildRequest struct {
	Confirm     bool
	ChunkConfig *model.ChunkingConfig
}

// StartRebuild clears the index and re-indexes every PDF in a background
// goroutine. It returns the job right away; progress is read from the job
// tracker. Only one rebuild runs at a time, also across processes sharing
// the data directory.
func (i *Indexer) StartRebuild(ctx context.Context, req RebuildRequest) (*model.RebuildJob, error) {
	job, chunker, lock, err := i.prepareRebuild(req)
	if err != nil {
		return nil, err
	}

	// The run outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	snapshot := i.jobs.Create(job, cancel)

	i.running.Add(1)
	go func() {
		defer i.running.Done()
		defer cancel()
		i.runRebuild(runCtx, job.ID, chunker, lock)
	}()

	return snapshot, nil
}

// Rebuild runs a rebuild in the calling goroutine and returns the finished job.
func (i *Indexer) Rebuild(ctx context.Context, req RebuildRequest) (*model.RebuildJob, error) {
	job, chunker, lock, err := i.prepareRebuild(req)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	i.jobs.Create(job, cancel)

	i.runRebuild(runCtx, job.ID, chunker, lock)
	return i.jobs.Get(job.ID)
}

// CancelRebuild stops a running rebuild. The job is marked failed once the
// file in progress is done.
func (i *Indexer) CancelRebuild(id string) (*model.RebuildJob, error) {
	job, err := i.jobs.Cancel(id)
	if err != nil {
		return nil, err
	}
	i.logger.Info("Rebuild cancellation requested", slog.String("job_id", id))
	return job, nil
}

// Wait blocks until all background rebuilds have returned.
func (i *Indexer) Wait() {
	i.running.Wait()
}

func (i *Indexer) prepareRebuild(req RebuildRequest) (*model.RebuildJob, ChunkFunc, *flock.Flock, error) {
	if !req.Confirm {
		return nil, nil, nil, fmt.Errorf("%w: must confirm rebuild with confirm=true", model.ErrConfirmationRequired)
	}
	cfg, chunker, err := i.chunker(req.ChunkConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	lock := flock.New(i.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, nil, helper.NewError("acquire rebuild lock", err)
	}
	if !locked {
		return nil, nil, nil, fmt.Errorf("%w (lock: %s)", model.ErrRebuildInProgress, i.lockPath)
	}

	paths, err := i.library.PDFs("")
	if err != nil {
		i.unlock(lock)
		return nil, nil, nil, err
	}

	return model.NewRebuildJob(len(paths), cfg), chunker, lock, nil
}

func (i *Indexer) unlock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		i.logger.Warn("Error releasing rebuild lock", slog.String("error", err.Error()))
	}
}

// runRebuild clears the store and indexes every PDF. A failing file is
// counted and skipped; failing to clear the store fails the job. Both locks
// are released before the final job status is set.
func (i *Indexer) runRebuild(ctx context.Context, id string, chunker ChunkFunc, lock *flock.Flock) {
	logger := i.logger.With(slog.String("job_id", id))

	files, err := i.rebuildCorpus(ctx, id, chunker, logger)
	i.unlock(lock)
	if err != nil {
		if isCancelled(err) {
			err = model.ErrRebuildCancelled
		}
		logger.Error("Rebuild failed", slog.String("error", err.Error()))
		_ = i.jobs.Update(id, func(job *model.RebuildJob) { job.Fail(err) })
		return
	}

	_ = i.jobs.Update(id, func(job *model.RebuildJob) { job.Complete() })
	logger.Info("Rebuild completed", slog.Int("files", files))
}

// rebuildCorpus holds the corpus for writing. Document changes already
// running finish first, new ones are refused until it returns.
func (i *Indexer) rebuildCorpus(ctx context.Context, id string, chunker ChunkFunc, logger *slog.Logger) (int, error) {
	i.corpus.Lock()
	defer i.corpus.Unlock()

	paths, err := i.library.PDFs("")
	if err != nil {
		return 0, err
	}
	_ = i.jobs.Update(id, func(job *model.RebuildJob) { job.TotalFiles = len(paths) })

	dimension, err := i.embedder.Dimension(ctx)
	if err != nil {
		return 0, err
	}
	removed, err := i.store.Clear(ctx, dimension)
	if err != nil {
		return 0, err
	}
	logger.Info("Rebuild started", slog.Int("files", len(paths)), slog.Int("chunks_removed", removed))

	for n, path := range paths {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_ = i.jobs.Update(id, func(job *model.RebuildJob) {
			job.Processed = n
			job.CurrentFile = path
		})

		indexed, err := i.indexFile(ctx, path, chunker)
		if err != nil && isCancelled(ctx.Err()) {
			return n, ctx.Err()
		}
		_ = i.jobs.Update(id, func(job *model.RebuildJob) {
			job.TotalChunks += indexed
			if err != nil {
				job.FailedFiles++
			}
		})
		if err != nil {
			logger.Warn("Rebuild skipped file", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	return len(paths), nil
}

// indexFile extracts and indexes one file and returns the chunks indexed.
func (i *Indexer) indexFile(ctx context.Context, path string, chunker ChunkFunc) (int, error) {
	doc, err := i.Extractor(path)
	if err != nil {
		return 0, err
	}
	result, err := i.pipeline(chunker).Process(ctx, path, doc.Text)
	return result.ChunksIndexed, err
}
