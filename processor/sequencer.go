package processor

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"histflow/models"
)

// ErrEmptyResult reports that a provider returned zero observations for an
// instrument. It is an expected, non-fatal condition: the orchestrator
// records it as a no-data outcome and moves on.
var ErrEmptyResult = errors.New("empty result")

// Sequence orders raw observations for one instrument by end time ascending
// and wraps them into a batch the store can consume. The sort is stable:
// observations with equal end times keep the provider's arrival order, since
// no secondary key is defined for them.
func Sequence(instrument models.Instrument, resolution models.Resolution, tickType models.TickType, observations []models.Observation) (models.OrderedBatch, error) {
	if len(observations) == 0 {
		return models.OrderedBatch{}, ErrEmptyResult
	}

	ordered := make([]models.Observation, len(observations))
	copy(ordered, observations)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EndTime.Before(ordered[j].EndTime)
	})

	return models.OrderedBatch{
		BatchID:      uuid.New().String(),
		Instrument:   instrument,
		Resolution:   resolution,
		TickType:     tickType,
		Observations: ordered,
		RecordCount:  len(ordered),
	}, nil
}
