package session

import (
	"context"

	"github.com/tokenized/logger"
)

// Reaper periodically sweeps the store for sessions past their TTL and deletes them, the backstop
// for storage backends that don't enforce storage.Options.TTL themselves.
type Reaper struct {
	store *Store
}

func NewReaper(store *Store) *Reaper {
	return &Reaper{store: store}
}

// Run implements scheduler.PeriodicTaskInterface.
func (r *Reaper) Run(ctx context.Context) {
	expired, err := r.store.ListExpired(ctx)
	if err != nil {
		logger.Warn(ctx, "session reaper list failed : %s", err)
		return
	}

	for _, pair := range expired {
		userID, sessionID := pair[0], pair[1]
		if err := r.store.Delete(ctx, userID, sessionID); err != nil {
			logger.Warn(ctx, "session reaper delete failed (%s/%s) : %s", userID, sessionID, err)
			continue
		}
		logger.Verbose(ctx, "reaped expired session %s/%s", userID, sessionID)
	}
}
