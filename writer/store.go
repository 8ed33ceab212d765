package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"histflow/models"
)

// ErrWriteFailure reports that a batch could not be persisted. The
// orchestrator records it against the instrument and keeps going.
var ErrWriteFailure = errors.New("write failure")

// Store persists one ordered batch into the partitioned data store,
// creating or overwriting the relevant partition. Implementations own all
// layout and format decisions.
type Store interface {
	Write(ctx context.Context, batch models.OrderedBatch) error
}

// Multi fans a batch out to several stores in order, stopping at the first
// failure. Used to mirror local partitions into S3.
type Multi []Store

func (m Multi) Write(ctx context.Context, batch models.OrderedBatch) error {
	for _, store := range m {
		if err := store.Write(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// partitionPath builds the relative partition directory for a batch:
// <securityType>/<market>/<resolution>/<symbol>.
func partitionPath(batch models.OrderedBatch) string {
	return path.Join(
		batch.Instrument.SecurityType.String(),
		strings.ToLower(batch.Instrument.Market),
		batch.Resolution.String(),
		strings.ToLower(batch.Instrument.Ticker),
	)
}

// partitionFile names the partition file inside its directory. The date of
// the earliest observation keys the partition, so re-downloading a range
// overwrites it in place.
func partitionFile(batch models.OrderedBatch, ext string) string {
	date := batch.Observations[0].EndTime.Format("20060102")
	return fmt.Sprintf("%s_%s.%s", date, batch.TickType.String(), ext)
}
