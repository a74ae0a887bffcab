package chat

import (
	"time"

	"github.com/molstudio/molchat/pkg/events"
)

// Artifact is a named, typed output produced by a run. Identity within a
// thread is the (asset id, path) pair; the server-assigned id and created
// timestamp appear once the artifact is persisted.
type Artifact struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	AssetID   string    `json:"asset_id"`
	IsFolder  bool      `json:"is_folder"`
	ThreadID  string    `json:"thread_id"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ArtifactAccumulator deduplicates artifact announcements within one
// session and buffers the ones announced before the run id is known.
type ArtifactAccumulator struct {
	threadID string
	seen     map[artifactKey]struct{}
	pending  []Artifact
}

type artifactKey struct {
	assetID string
	path    string
}

// NewArtifactAccumulator creates an accumulator scoped to one thread's session
func NewArtifactAccumulator(threadID string) *ArtifactAccumulator {
	return &ArtifactAccumulator{
		threadID: threadID,
		seen:     make(map[artifactKey]struct{}),
	}
}

// Add records an announcement. Duplicate (asset id, path) pairs are
// dropped: accepted is false and nothing changes. An accepted artifact
// with an empty RunID has been buffered and will come back out of Flush.
func (a *ArtifactAccumulator) Add(note events.ArtifactNote, runID string) (artifact Artifact, accepted bool) {
	key := artifactKey{assetID: note.AssetID, path: note.Path}
	if _, dup := a.seen[key]; dup {
		return Artifact{}, false
	}
	a.seen[key] = struct{}{}

	artifact = Artifact{
		Type:     note.Type,
		Path:     note.Path,
		AssetID:  note.AssetID,
		IsFolder: note.Type == "folder",
		ThreadID: a.threadID,
		RunID:    runID,
	}

	if runID == "" {
		a.pending = append(a.pending, artifact)
	}

	return artifact, true
}

// Flush stamps every pending artifact with the resolved run id and drains
// the buffer in one batch
func (a *ArtifactAccumulator) Flush(runID string) []Artifact {
	if len(a.pending) == 0 {
		return nil
	}

	flushed := a.pending
	a.pending = nil
	for i := range flushed {
		flushed[i].RunID = runID
	}
	return flushed
}

// PendingCount returns how many artifacts await a run id
func (a *ArtifactAccumulator) PendingCount() int {
	return len(a.pending)
}
