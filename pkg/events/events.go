package events

// Kind identifies the application-level meaning of a stream frame
type Kind string

const (
	KindStatus        Kind = "status"
	KindToken         Kind = "token"
	KindAnalysisToken Kind = "analysis_token"
	KindRunID         Kind = "run_id"
	KindToolStart     Kind = "on_tool_start"
	KindToolEnd       Kind = "on_tool_end"
	KindAborted       Kind = "aborted"
	KindDone          Kind = "done"
	KindMessage       Kind = "message"
)

// ArtifactNote is an artifact announcement carried in a stream payload.
// The run id is usually not known yet at announcement time.
type ArtifactNote struct {
	Type    string
	Path    string
	AssetID string
}

// Event is the decoded form of one stream frame
type Event struct {
	Kind Kind

	// Delta is the assistant text fragment to append, empty when the
	// frame carries none. HasDelta distinguishes an empty fragment from
	// no fragment at all.
	Delta    string
	HasDelta bool

	// Analysis is the reasoning side-channel fragment, for analysis_token frames
	Analysis string

	// Phase is the free-form status label, for status frames
	Phase string

	// RunID is the backend run identifier when the payload carries one
	RunID string

	// Tool names the tool for tool start/end frames
	Tool string

	// Artifacts lists valid artifact announcements found in the payload
	Artifacts []ArtifactNote

	// Raw is the undecoded frame data, kept for logging
	Raw string
}

// IsTerminal reports whether the event concludes the run
func (e Event) IsTerminal() bool {
	return e.Kind == KindDone || e.Kind == KindAborted
}
