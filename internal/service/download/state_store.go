package download

import (
	"context"
	"fmt"
	"maps"

	"github.com/oshokin/trackvault/internal/observable"
	"github.com/oshokin/trackvault/internal/storage"
)

// StateStore exposes one read-only view of download states merged from live transfers
// and from the downloads recorded in durable storage.
type StateStore struct {
	// live holds the states published by the orchestrator in this process.
	live *observable.Value[map[string]State]
	// durable holds the completed downloads found in durable storage.
	durable *observable.Value[map[string]State]
	// unified is the merged view.
	unified observable.Observable[map[string]State]
	// store is the durable catalogue.
	store storage.CatalogStore
}

// NewStateStore creates a state store. Call Refresh to load the durable source.
func NewStateStore(store storage.CatalogStore) *StateStore {
	var (
		live    = observable.NewValue(map[string]State{})
		durable = observable.NewValue(map[string]State{})
	)

	return &StateStore{
		live:    live,
		durable: durable,
		unified: observable.CombineLatest(live, durable, mergeStates),
		store:   store,
	}
}

// mergeStates unions both sources; a durable Completed entry wins over a live one.
func mergeStates(live, durable map[string]State) map[string]State {
	merged := make(map[string]State, len(live)+len(durable))
	maps.Copy(merged, live)

	for id, state := range durable {
		if state.Status == StatusCompleted {
			merged[id] = state

			continue
		}

		if _, ok := merged[id]; !ok {
			merged[id] = state
		}
	}

	return merged
}

// Refresh rebuilds the durable source from the catalogue store.
func (s *StateStore) Refresh(ctx context.Context) error {
	records, err := s.store.ListDownloaded(ctx)
	if err != nil {
		return fmt.Errorf("failed to list downloaded tracks: %w", err)
	}

	durable := make(map[string]State, len(records))

	for _, record := range records {
		if !record.IsDownloaded() {
			continue
		}

		state := State{
			TrackID:  record.ID,
			Status:   StatusCompleted,
			Progress: 1,
			Ref:      record.DownloadRef,
		}

		if record.DownloadedAt != nil {
			state.UpdatedAt = *record.DownloadedAt
		}

		durable[record.ID] = state
	}

	s.durable.Set(durable)

	return nil
}

// Snapshot returns a copy of the unified view.
func (s *StateStore) Snapshot() map[string]State {
	return maps.Clone(s.unified.Get())
}

// Get returns the unified state of a track.
func (s *StateStore) Get(trackID string) (State, bool) {
	state, ok := s.unified.Get()[trackID]

	return state, ok
}

// Subscribe streams the unified view: the current value first, then every change.
// The maps received must not be modified.
func (s *StateStore) Subscribe(ctx context.Context) <-chan map[string]State {
	return s.unified.Subscribe(ctx)
}

// OnChange registers fn to run after every change of the unified view.
func (s *StateStore) OnChange(fn func()) func() {
	return s.unified.OnChange(fn)
}

// Counts aggregates the queued and downloading tracks of the unified view.
func (s *StateStore) Counts() Counts {
	return countStates(s.unified.Get())
}

func countStates(states map[string]State) Counts {
	var counts Counts

	for _, state := range states {
		switch state.Status {
		case StatusQueued:
			counts.Queued++
		case StatusDownloading:
			counts.Downloading++
		case StatusCompleted, StatusFailed, StatusCancelled:
		}
	}

	return counts
}

// liveState returns the state published in this process.
func (s *StateStore) liveState(trackID string) (State, bool) {
	state, ok := s.live.Get()[trackID]

	return state, ok
}

// durableState returns the state derived from durable storage.
func (s *StateStore) durableState(trackID string) (State, bool) {
	state, ok := s.durable.Get()[trackID]

	return state, ok
}

// publish replaces the live state of a track. Maps are copied on write so readers never see a torn map.
func (s *StateStore) publish(state State) {
	s.live.Update(func(current map[string]State) map[string]State {
		next := maps.Clone(current)
		next[state.TrackID] = state

		return next
	})
}

// putDurable records a download committed in this process without reloading the whole catalogue.
func (s *StateStore) putDurable(state State) {
	s.durable.Update(func(current map[string]State) map[string]State {
		next := maps.Clone(current)
		next[state.TrackID] = state

		return next
	})
}

// dropDurable removes a track from the durable source until the next Refresh.
func (s *StateStore) dropDurable(trackID string) {
	s.durable.Update(func(current map[string]State) map[string]State {
		if _, ok := current[trackID]; !ok {
			return current
		}

		next := maps.Clone(current)
		delete(next, trackID)

		return next
	})
}

// forget removes the live state of a track.
func (s *StateStore) forget(trackID string) {
	s.live.Update(func(current map[string]State) map[string]State {
		if _, ok := current[trackID]; !ok {
			return current
		}

		next := maps.Clone(current)
		delete(next, trackID)

		return next
	})
}
