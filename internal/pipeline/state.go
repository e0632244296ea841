package pipeline

import (
	"fmt"

	"github.com/contexta-labs/filingsrag/internal/models"
)

// order gives each status except Failed its position in the monotonic
// chain Pending -> Downloading -> Extracting -> Chunking ->
// GeneratingEmbeddings -> PersistingEmbeddings -> Completed.
var order = map[models.IngestionStatus]int{
	models.StatusPending:              0,
	models.StatusDownloading:          1,
	models.StatusExtracting:           2,
	models.StatusChunking:             3,
	models.StatusGeneratingEmbeddings: 4,
	models.StatusPersistingEmbeddings: 5,
	models.StatusCompleted:            6,
}

// transitionTo validates a monotonic, write-once status change. Any
// status may move to Failed; terminal states (Completed, Failed) accept
// no further transitions.
func transitionTo(current, next models.IngestionStatus) error {
	if current.IsTerminal() {
		return fmt.Errorf("%w: cannot transition out of terminal state %q", errTerminalState, current)
	}
	if next == models.StatusFailed {
		return nil
	}
	curRank, curOK := order[current]
	nextRank, nextOK := order[next]
	if !curOK || !nextOK {
		return fmt.Errorf("%w: unknown status in transition %q -> %q", errTerminalState, current, next)
	}
	if nextRank <= curRank {
		return fmt.Errorf("%w: non-monotonic transition %q -> %q", errTerminalState, current, next)
	}
	return nil
}
