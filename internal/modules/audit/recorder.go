// README: Best-effort audit recorder; failures are logged, never propagated.
package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder appends audit entries after the primary transaction has committed.
// A failed audit write must not undo or block the committed work, so Record
// returns nothing; failures go to the log.
type Recorder struct {
	store *Store
	log   zerolog.Logger
}

func NewRecorder(store *Store, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	if err := r.store.Append(ctx, &e); err != nil {
		r.log.Error().
			Err(err).
			Str("action", e.Action).
			Str("entity", e.Entity).
			Str("entity_id", e.EntityID).
			Msg("audit write failed")
	}
}
