package app

import (
	"context"
	"sort"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// CandidateQuery selects boosters who could take a slot.
type CandidateQuery struct {
	Specialties domain.SpecialtySet
	Location    domain.Location
	Window      domain.TimeWindow
	ExcludeIDs  []string
	// JobID keeps the job's own assignments from marking its boosters busy.
	JobID string
}

// CandidatePool is a read-only view over the booster directory.
type CandidatePool struct {
	boosters BoosterRepository
}

func NewCandidatePool(boosters BoosterRepository) *CandidatePool {
	return &CandidatePool{boosters: boosters}
}

// FindCandidates returns qualified, available boosters ordered by rating,
// then review count, then id.
func (p *CandidatePool) FindCandidates(ctx context.Context, q CandidateQuery) ([]domain.Booster, error) {
	boosters, err := p.boosters.ListQualifiedBoosters(ctx, q.Specialties)
	if err != nil {
		return nil, err
	}

	var busy map[string]struct{}
	if q.Window.Valid() {
		busy, err = p.boosters.BusyBoosterIDs(ctx, q.Window, q.JobID)
		if err != nil {
			return nil, err
		}
	}

	excluded := make(map[string]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	out := make([]domain.Booster, 0, len(boosters))
	for _, b := range boosters {
		if _, ok := excluded[b.ID]; ok {
			continue
		}
		if _, ok := busy[b.ID]; ok {
			continue
		}
		if !qualifies(b, q.Specialties, q.Location) {
			continue
		}
		out = append(out, b)
	}

	sortCandidates(out)
	return out, nil
}

// Qualifies reports whether one booster fits the query, ignoring exclusions.
func (p *CandidatePool) Qualifies(ctx context.Context, b domain.Booster, q CandidateQuery) (bool, error) {
	if !qualifies(b, q.Specialties, q.Location) {
		return false, nil
	}
	if !q.Window.Valid() {
		return true, nil
	}
	busy, err := p.boosters.BusyBoosterIDs(ctx, q.Window, q.JobID)
	if err != nil {
		return false, err
	}
	_, blocked := busy[b.ID]
	return !blocked, nil
}

func qualifies(b domain.Booster, required domain.SpecialtySet, loc domain.Location) bool {
	return b.Active && b.Specialties.Covers(required) && b.Serves(loc)
}

func sortCandidates(bs []domain.Booster) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Rating != bs[j].Rating {
			return bs[i].Rating > bs[j].Rating
		}
		if bs[i].ReviewCount != bs[j].ReviewCount {
			return bs[i].ReviewCount > bs[j].ReviewCount
		}
		return bs[i].ID < bs[j].ID
	})
}
