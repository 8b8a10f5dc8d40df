package download

//go:generate $MOCKGEN -source=orchestrator.go -destination=mocks/orchestrator_mock.go

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/sink"
	"github.com/oshokin/trackvault/internal/service/stream"
	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/telemetry"
)

// Orchestrator runs background downloads with a bounded worker pool.
// Callers observe outcomes only through the state store.
type Orchestrator interface {
	// Start launches the dispatcher. Tracks enqueued before Start wait for it.
	Start(ctx context.Context)
	// Close cancels every queued and running download and waits for the workers.
	Close()
	// Enqueue requests a download of a track. Repeated requests are no-ops.
	Enqueue(ctx context.Context, track *Track) error
	// EnqueueAll requests downloads of several tracks in order.
	EnqueueAll(ctx context.Context, tracks []*Track) error
	// Cancel stops a queued or running download, or removes a completed one.
	// A running download is reported Cancelled once its worker has stopped and cleaned up.
	Cancel(ctx context.Context, trackID string) error
	// Retry re-reads a track from durable storage and enqueues it again.
	Retry(ctx context.Context, trackID string) error
	// Verify reports whether the durable file of a track still exists, forgetting it when it does not.
	Verify(ctx context.Context, trackID string) (bool, error)
	// States returns the unified state view.
	States() *StateStore
}

// OrchestratorImpl implements the Orchestrator interface.
type OrchestratorImpl struct {
	// interceptor resolves stream URLs, sharing the playback cache.
	interceptor stream.Interceptor
	// transfer moves the bytes of one track.
	transfer TransferExecutor
	// sink holds the committed files.
	sink sink.Sink
	// store is the durable catalogue.
	store storage.CatalogStore
	// states is the unified state view.
	states *StateStore
	// telemetry records download metrics.
	telemetry *telemetry.Telemetry
	// permits bounds the number of simultaneous transfers.
	permits *semaphore.Weighted
	// maxRetries is the number of retries after the first failed attempt.
	maxRetries int
	// initialRetryDelay is the delay before the first retry, doubled for each further retry.
	initialRetryDelay time.Duration
	// formatTag is the encoding requested for downloads (0 lets the resolver choose).
	formatTag int
	// now returns the current time.
	now func() time.Time

	// mu guards every field below and orders state publishing.
	mu sync.Mutex
	// queue holds the pending tracks in FIFO order.
	queue []*Track
	// queued indexes the pending tracks by id.
	queued map[string]struct{}
	// checking holds the tracks whose durable state is being checked by Enqueue; the value marks a cancellation.
	checking map[string]bool
	// active holds the tracks taken off the queue, waiting for a permit or transferring.
	// A cancelled job stays here until its worker exits.
	active map[string]*job
	// wake signals the dispatcher that the queue is not empty.
	wake chan struct{}
	// cancel stops the dispatcher and every job.
	cancel context.CancelFunc
	// started is set by Start.
	started bool
	// closed is set by Close.
	closed bool
	// wg tracks the dispatcher and the workers.
	wg sync.WaitGroup
}

// OrchestratorOptions holds the settings and collaborators of an orchestrator.
type OrchestratorOptions struct {
	// Interceptor resolves stream URLs.
	Interceptor stream.Interceptor
	// Transfer moves the bytes of one track.
	Transfer TransferExecutor
	// Sink holds the committed files.
	Sink sink.Sink
	// Store is the durable catalogue.
	Store storage.CatalogStore
	// States is the unified state view; a new one is created when nil.
	States *StateStore
	// Telemetry records download metrics.
	Telemetry *telemetry.Telemetry
	// MaxConcurrent is the size of the permit pool (0 = DefaultMaxConcurrent).
	MaxConcurrent int64
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int
	// InitialRetryDelay is the delay before the first retry (0 = DefaultInitialRetryDelay).
	InitialRetryDelay time.Duration
	// FormatTag is the encoding requested for downloads.
	FormatTag int
}

// job is one track owned by the orchestrator between leaving the queue and reaching a terminal state.
type job struct {
	track  *Track
	ctx    context.Context //nolint:containedctx // The job context is its cancellation handle.
	cancel context.CancelFunc
	// state is the last published state; written under the orchestrator mutex.
	state State
	// cancelled is set when the job was cancelled and its worker has not stopped yet.
	cancelled bool
	// requeue is a request for the same track received while the job was stopping.
	requeue *Track
}

const (
	// DefaultMaxConcurrent is the default size of the permit pool.
	DefaultMaxConcurrent = 3
	// DefaultInitialRetryDelay is the default delay before the first retry.
	DefaultInitialRetryDelay = time.Second

	downloadStatusSuccess   = "success"
	downloadStatusFailed    = "failed"
	downloadStatusCancelled = "cancelled"
)

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(opts *OrchestratorOptions) Orchestrator {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	initialRetryDelay := opts.InitialRetryDelay
	if initialRetryDelay <= 0 {
		initialRetryDelay = DefaultInitialRetryDelay
	}

	states := opts.States
	if states == nil {
		states = NewStateStore(opts.Store)
	}

	return &OrchestratorImpl{
		interceptor:       opts.Interceptor,
		transfer:          opts.Transfer,
		sink:              opts.Sink,
		store:             opts.Store,
		states:            states,
		telemetry:         opts.Telemetry,
		permits:           semaphore.NewWeighted(maxConcurrent),
		maxRetries:        max(opts.MaxRetries, 0),
		initialRetryDelay: initialRetryDelay,
		formatTag:         opts.FormatTag,
		now:               time.Now,
		queued:            make(map[string]struct{}),
		checking:          make(map[string]bool),
		active:            make(map[string]*job),
		wake:              make(chan struct{}, 1),
	}
}

// States returns the unified state view.
func (o *OrchestratorImpl) States() *StateStore {
	return o.states
}

// Start launches the dispatcher. Tracks enqueued before Start wait for it.
func (o *OrchestratorImpl) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started || o.closed {
		return
	}

	ctx, o.cancel = context.WithCancel(ctx)
	o.started = true

	o.wg.Add(1)

	go o.dispatch(ctx)
}

// Close cancels every queued and running download and waits for the workers.
func (o *OrchestratorImpl) Close() {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return
	}

	o.closed = true

	for _, track := range o.queue {
		o.publishLocked(State{TrackID: track.ID, Status: StatusCancelled})
	}

	o.queue = nil
	clear(o.queued)

	// Workers publish Cancelled from finish after their cleanup.
	for _, j := range o.active {
		j.cancelled = true
		j.requeue = nil
		j.cancel()
	}

	if o.cancel != nil {
		o.cancel()
	}

	o.mu.Unlock()

	o.wg.Wait()
}

// Enqueue requests a download of a track. Repeated requests are no-ops.
func (o *OrchestratorImpl) Enqueue(ctx context.Context, track *Track) error {
	if track == nil || track.ID == "" {
		return ErrEmptyTrackID
	}

	copied := *track
	track = &copied
	id := track.ID

	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return ErrOrchestratorClosed
	}

	if j, ok := o.active[id]; ok && j.cancelled {
		if !track.hasMetadata() {
			copied = *j.track
			track = &copied
		}

		j.requeue = track
		o.mu.Unlock()
		logger.Debugf(ctx, "Track %s will be queued again when its cancelled download stops", id)

		return nil
	}

	if o.isPendingLocked(id) {
		o.mu.Unlock()
		logger.Debugf(ctx, "Track %s is already queued or downloading", id)

		return nil
	}

	// The reservation keeps concurrent requests for the same track out while storage is checked.
	o.checking[id] = false
	o.mu.Unlock()

	record, present, verifyErr := o.verify(ctx, id)
	if verifyErr != nil {
		logger.Warnf(ctx, "Failed to verify track %s: %v", id, verifyErr)
	}

	live, hasLive := o.states.liveState(id)

	switch {
	case present:
		o.settleReservation(id, func() {
			o.publishLocked(State{
				TrackID:   id,
				Status:    StatusCompleted,
				Progress:  1,
				Ref:       record.DownloadRef,
				UpdatedAt: o.now(),
			})
		})
		logger.Infof(ctx, "Track %s is already downloaded", id)

		return nil
	case verifyErr != nil && hasLive && live.Status == StatusCompleted:
		o.settleReservation(id, nil)

		return nil
	case verifyErr == nil:
		o.rememberTrack(ctx, track, record)
	}

	queued := o.settleReservation(id, func() {
		o.queue = append(o.queue, track)
		o.queued[id] = struct{}{}
		o.publishLocked(State{TrackID: id, Status: StatusQueued, UpdatedAt: o.now()})
	})

	if queued {
		o.signal()
		logger.Infof(ctx, "Queued track %s", id)
	}

	return nil
}

// EnqueueAll requests downloads of several tracks in order.
func (o *OrchestratorImpl) EnqueueAll(ctx context.Context, tracks []*Track) error {
	var errs []error

	for _, track := range tracks {
		if err := o.Enqueue(ctx, track); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Cancel stops a queued or running download, or removes a completed one.
func (o *OrchestratorImpl) Cancel(ctx context.Context, trackID string) error {
	o.mu.Lock()

	if j, ok := o.active[trackID]; ok {
		// A pending request for the stopping job is dropped as well.
		j.requeue = nil

		if !j.cancelled {
			j.cancelled = true
			j.cancel()
		}

		o.mu.Unlock()

		logger.Infof(ctx, "Cancelling download of track %s", trackID)

		return nil
	}

	if _, ok := o.queued[trackID]; ok {
		delete(o.queued, trackID)
		o.queue = slices.DeleteFunc(o.queue, func(t *Track) bool { return t.ID == trackID })
		o.publishLocked(State{TrackID: trackID, Status: StatusCancelled, UpdatedAt: o.now()})
		o.mu.Unlock()

		logger.Infof(ctx, "Removed track %s from the queue", trackID)

		return nil
	}

	if _, ok := o.checking[trackID]; ok {
		o.checking[trackID] = true
		o.publishLocked(State{TrackID: trackID, Status: StatusCancelled, UpdatedAt: o.now()})
		o.mu.Unlock()

		return nil
	}

	o.mu.Unlock()

	state, ok := o.states.Get(trackID)
	if !ok || state.Status == StatusCancelled {
		return nil
	}

	if state.Status == StatusCompleted {
		if err := o.removeDownloaded(ctx, trackID); err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.publishLocked(State{TrackID: trackID, Status: StatusCancelled, UpdatedAt: o.now()})
	o.mu.Unlock()

	return nil
}

// Retry re-reads a track from durable storage and enqueues it again.
func (o *OrchestratorImpl) Retry(ctx context.Context, trackID string) error {
	record, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to read track %s: %w", trackID, err)
	}

	if record == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	return o.Enqueue(ctx, trackFromRecord(record))
}

// Verify reports whether the durable file of a track still exists.
// A dangling reference is cleared so that the track can be downloaded again.
func (o *OrchestratorImpl) Verify(ctx context.Context, trackID string) (bool, error) {
	_, present, err := o.verify(ctx, trackID)

	return present, err
}

// verify returns the stored record of a track and whether its durable file exists.
func (o *OrchestratorImpl) verify(ctx context.Context, trackID string) (*storage.TrackRecord, bool, error) {
	record, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read track %s: %w", trackID, err)
	}

	if record == nil || !record.IsDownloaded() {
		return record, false, nil
	}

	exists, err := o.sink.Exists(ctx, record.DownloadRef)
	if err != nil {
		return record, false, fmt.Errorf("failed to check file of track %s: %w", trackID, err)
	}

	if exists {
		return record, true, nil
	}

	logger.Warnf(ctx, "File '%s' of track %s is missing, forgetting the download", record.DownloadRef, trackID)

	if err = o.store.ClearDownload(ctx, trackID); err != nil {
		return record, false, fmt.Errorf("failed to clear download of track %s: %w", trackID, err)
	}

	o.states.dropDurable(trackID)

	o.mu.Lock()

	if live, ok := o.states.liveState(trackID); ok && live.Status == StatusCompleted && o.active[trackID] == nil {
		o.states.forget(trackID)
	}

	o.mu.Unlock()

	return record, false, nil
}

// removeDownloaded deletes the committed file of a track and clears its durable reference.
func (o *OrchestratorImpl) removeDownloaded(ctx context.Context, trackID string) error {
	record, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to read track %s: %w", trackID, err)
	}

	if record != nil && record.IsDownloaded() {
		if err = o.sink.Delete(ctx, record.DownloadRef); err != nil {
			return fmt.Errorf("failed to delete file of track %s: %w", trackID, err)
		}

		if err = o.store.ClearDownload(ctx, trackID); err != nil {
			return fmt.Errorf("failed to clear download of track %s: %w", trackID, err)
		}

		logger.Infof(ctx, "Deleted downloaded track %s", trackID)
	}

	o.states.dropDurable(trackID)

	return nil
}

// rememberTrack stores the request metadata, or fills it in from the stored record when the request carries none.
func (o *OrchestratorImpl) rememberTrack(ctx context.Context, track *Track, record *storage.TrackRecord) {
	if !track.hasMetadata() && record != nil {
		*track = *trackFromRecord(record)

		return
	}

	if err := o.store.UpsertTrack(ctx, track.record()); err != nil {
		logger.Warnf(ctx, "Failed to save track %s: %v", track.ID, err)
	}
}

// settleReservation ends the storage check of Enqueue and runs fn unless the track was cancelled meanwhile.
func (o *OrchestratorImpl) settleReservation(trackID string, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	cancelled := o.checking[trackID]
	delete(o.checking, trackID)

	if cancelled || o.closed || fn == nil {
		return false
	}

	fn()

	return true
}

func (o *OrchestratorImpl) isPendingLocked(trackID string) bool {
	if _, ok := o.queued[trackID]; ok {
		return true
	}

	if _, ok := o.checking[trackID]; ok {
		return true
	}

	if _, ok := o.active[trackID]; ok {
		return true
	}

	live, ok := o.states.liveState(trackID)

	return ok && (live.Status == StatusQueued || live.Status == StatusDownloading)
}

// signal wakes the dispatcher without blocking.
func (o *OrchestratorImpl) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// dispatch drains the queue in FIFO order, starting one worker per acquired permit.
func (o *OrchestratorImpl) dispatch(ctx context.Context) {
	defer o.wg.Done()

	for {
		j := o.next(ctx)
		if j == nil {
			return
		}

		// Cancelling the job abandons the wait.
		if err := o.permits.Acquire(j.ctx, 1); err != nil {
			o.finish(j)

			continue
		}

		o.wg.Add(1)

		go o.work(j)
	}
}

// next pops the queue head and registers it as active, blocking while the queue is empty.
func (o *OrchestratorImpl) next(ctx context.Context) *job {
	for {
		o.mu.Lock()

		if len(o.queue) > 0 && !o.closed {
			track := o.queue[0]
			o.queue[0] = nil
			o.queue = o.queue[1:]
			delete(o.queued, track.ID)

			jobCtx, cancel := context.WithCancel(ctx)
			j := &job{
				track:  track,
				ctx:    jobCtx,
				cancel: cancel,
				state:  State{TrackID: track.ID, Status: StatusQueued},
			}
			o.active[track.ID] = j

			o.mu.Unlock()

			return j
		}

		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-o.wake:
		}
	}
}

// work runs one job on an acquired permit and releases it exactly once.
func (o *OrchestratorImpl) work(j *job) {
	defer o.wg.Done()
	defer o.permits.Release(1)
	defer o.finish(j)

	o.telemetry.IncrementActiveDownloads()
	defer o.telemetry.DecrementActiveDownloads()

	started := time.Now()
	status := o.run(j)

	o.telemetry.RecordDownload(status, time.Since(started))
}

// finish ends the ownership of a job once its worker has stopped.
// A job that did not reach a terminal state is published as Cancelled,
// and a request received while it was stopping is queued.
func (o *OrchestratorImpl) finish(j *job) {
	j.cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	id := j.track.ID

	if o.active[id] != j {
		return
	}

	delete(o.active, id)

	if !j.state.Status.IsTerminal() {
		j.state.Status = StatusCancelled
		j.state.UpdatedAt = o.now()
		o.publishLocked(j.state)
	}

	if j.requeue == nil || o.closed {
		return
	}

	o.queue = append(o.queue, j.requeue)
	o.queued[id] = struct{}{}
	o.publishLocked(State{TrackID: id, Status: StatusQueued, UpdatedAt: o.now()})
	o.signal()
}

// run performs the attempts of a job and returns its final telemetry status.
func (o *OrchestratorImpl) run(j *job) string {
	var (
		ctx       = logger.WithKV(j.ctx, "track_id", j.track.ID)
		formatTag = o.formatTag
		attempt   = 0
	)

	for {
		if !o.update(j, func(state *State) {
			state.Status = StatusDownloading
			state.Progress = 0
			state.BytesDownloaded = 0
			state.RetryAttempt = attempt
		}) {
			return downloadStatusCancelled
		}

		ref, err := o.attempt(ctx, j, &formatTag)
		if err == nil {
			return o.complete(ctx, j, ref)
		}

		if j.ctx.Err() != nil {
			return downloadStatusCancelled
		}

		// The next attempt must not reuse a URL that just failed.
		o.interceptor.Invalidate(ctx, j.track.ID)

		if attempt >= o.maxRetries {
			logger.Errorf(ctx, "Failed to download track %s: %v", j.track.ID, err)
			o.update(j, func(state *State) {
				state.Status = StatusFailed
				state.Error = err.Error()
				state.RetryAttempt = attempt
			})

			return downloadStatusFailed
		}

		delay := o.initialRetryDelay << attempt
		attempt++

		o.telemetry.RecordRetry()
		logger.Warnf(ctx, "Download of track %s failed, retrying in %s (%d/%d): %v",
			j.track.ID, delay, attempt, o.maxRetries, err)

		if !o.update(j, func(state *State) {
			state.Progress = 0
			state.BytesDownloaded = 0
			state.Error = retryingMessage(attempt, o.maxRetries)
			state.RetryAttempt = attempt
		}) {
			return downloadStatusCancelled
		}

		if sleepContext(j.ctx, delay) != nil {
			return downloadStatusCancelled
		}
	}
}

// attempt resolves, transfers and records one track, returning the durable reference.
func (o *OrchestratorImpl) attempt(ctx context.Context, j *job, formatTag *int) (string, error) {
	resolved, err := o.interceptor.Resolve(ctx, j.track.ID, *formatTag)
	if err != nil {
		return "", fmt.Errorf("failed to resolve stream: %w", err)
	}

	// Retries keep the encoding of the first resolution.
	if *formatTag == 0 {
		*formatTag = resolved.Format.Tag
	}

	result, err := o.transfer.Transfer(ctx, &TransferRequest{
		Track:         j.track,
		URL:           resolved.URL,
		MimeType:      resolved.Format.MimeType,
		ExpectedBytes: resolved.Format.ContentLength,
	}, func(downloaded, total int64) {
		o.reportProgress(j, downloaded, total)
	})
	if err != nil {
		return "", err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		o.discard(ctx, j.track.ID, result.Ref)

		return "", ctxErr
	}

	// Recording must not be torn by a cancellation; complete rolls it back if the job was cancelled.
	if err = o.store.MarkDownloaded(context.WithoutCancel(ctx), j.track.ID, result.Ref, o.now()); err != nil {
		o.discard(ctx, j.track.ID, result.Ref)

		return "", fmt.Errorf("failed to record download: %w", err)
	}

	return result.Ref, nil
}

// complete publishes the Completed state, rolling the download back if the job was cancelled meanwhile.
// Ownership of the track ends with the Completed state, so a later Cancel removes the file.
func (o *OrchestratorImpl) complete(ctx context.Context, j *job, ref string) string {
	o.mu.Lock()

	owned := o.active[j.track.ID] == j && j.ctx.Err() == nil
	if owned {
		j.state.Status = StatusCompleted
		j.state.Progress = 1
		j.state.Error = ""
		j.state.Ref = ref
		j.state.UpdatedAt = o.now()

		if j.state.TotalBytes > 0 {
			j.state.BytesDownloaded = j.state.TotalBytes
		}

		o.publishLocked(j.state)
		o.states.putDurable(j.state)
		delete(o.active, j.track.ID)
	}

	o.mu.Unlock()

	if !owned {
		o.discard(ctx, j.track.ID, ref)

		if err := o.store.ClearDownload(context.WithoutCancel(ctx), j.track.ID); err != nil {
			logger.Warnf(ctx, "Failed to clear download of cancelled track %s: %v", j.track.ID, err)
		}

		return downloadStatusCancelled
	}

	logger.Infof(ctx, "Downloaded track %s to '%s'", j.track.ID, ref)

	return downloadStatusSuccess
}

// discard deletes a committed file that must not be kept.
func (o *OrchestratorImpl) discard(ctx context.Context, trackID, ref string) {
	if err := o.sink.Delete(context.WithoutCancel(ctx), ref); err != nil {
		logger.Warnf(ctx, "Failed to delete file '%s' of track %s: %v", ref, trackID, err)
	}
}

// reportProgress publishes transfer progress; progress never decreases within an attempt.
func (o *OrchestratorImpl) reportProgress(j *job, downloaded, total int64) {
	o.update(j, func(state *State) {
		state.BytesDownloaded = downloaded
		state.TotalBytes = total
		state.Progress = max(state.Progress, fraction(downloaded, total))
	})
}

// update mutates and publishes the state of a job unless the job no longer owns its track.
func (o *OrchestratorImpl) update(j *job, mutate func(state *State)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active[j.track.ID] != j || j.ctx.Err() != nil {
		return false
	}

	mutate(&j.state)
	j.state.UpdatedAt = o.now()
	o.publishLocked(j.state)

	return true
}

// publishLocked writes a live state; the caller holds o.mu so publishing is ordered with ownership changes.
func (o *OrchestratorImpl) publishLocked(state State) {
	o.states.publish(state)
}

func trackFromRecord(record *storage.TrackRecord) *Track {
	return &Track{
		ID:              record.ID,
		Title:           record.Title,
		Artist:          record.Artist,
		Album:           record.Album,
		Year:            record.Year,
		DurationSeconds: record.DurationSeconds,
		ThumbnailURL:    record.ThumbnailURL,
	}
}
