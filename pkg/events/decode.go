package events

import (
	"github.com/tidwall/gjson"

	"github.com/molstudio/molchat/pkg/sse"
)

// Decode maps a parsed frame to its typed event. Decoding is pure and
// tolerant: malformed JSON payloads degrade to absent fields, never errors.
func Decode(frame sse.Frame) Event {
	data := frame.Data
	valid := gjson.Valid(data)

	ev := Event{Raw: data}

	if valid {
		if runID := gjson.Get(data, "run_id"); runID.Type == gjson.String {
			ev.RunID = runID.String()
		}
		ev.Artifacts = decodeArtifacts(data)
	}

	switch frame.Event {
	case "status":
		ev.Kind = KindStatus
		if valid {
			if phase := gjson.Get(data, "phase"); phase.Type == gjson.String {
				ev.Phase = phase.String()
			}
		}

	case "token":
		ev.Kind = KindToken
		switch {
		case valid && gjson.Get(data, "token").Type == gjson.String:
			ev.Delta = gjson.Get(data, "token").String()
			ev.HasDelta = true
		case valid && gjson.Get(data, "delta").Type == gjson.String:
			// The backend has emitted token frames under both field names
			ev.Delta = gjson.Get(data, "delta").String()
			ev.HasDelta = true
		case !valid:
			// Non-JSON token payloads still render as raw text
			ev.Delta = data
			ev.HasDelta = true
		}

	case "analysis_token":
		// Analysis frames never contribute to the visible text delta
		ev.Kind = KindAnalysisToken
		if valid {
			if tok := gjson.Get(data, "token"); tok.Type == gjson.String {
				ev.Analysis = tok.String()
			} else if delta := gjson.Get(data, "delta"); delta.Type == gjson.String {
				ev.Analysis = delta.String()
			}
		}

	case "run_id":
		ev.Kind = KindRunID

	case "on_tool_start":
		ev.Kind = KindToolStart
		ev.Tool = toolName(data, valid)

	case "on_tool_end":
		ev.Kind = KindToolEnd
		ev.Tool = toolName(data, valid)

	case "aborted":
		ev.Kind = KindAborted

	case "done":
		ev.Kind = KindDone

	default:
		// Forward-compatible fallback: unhandled event names carry their
		// delta field when present, else the raw data renders as the delta
		ev.Kind = KindMessage
		if valid && gjson.Get(data, "delta").Type == gjson.String {
			ev.Delta = gjson.Get(data, "delta").String()
		} else {
			ev.Delta = data
		}
		ev.HasDelta = true
	}

	return ev
}

// decodeArtifacts extracts valid artifact announcements from a payload's
// artifacts array. An element missing any of the string fields type, path
// or asset_id is dropped; the rest of the array survives.
func decodeArtifacts(data string) []ArtifactNote {
	arr := gjson.Get(data, "artifacts")
	if !arr.IsArray() {
		return nil
	}

	var notes []ArtifactNote
	arr.ForEach(func(_, elem gjson.Result) bool {
		typ := elem.Get("type")
		path := elem.Get("path")
		assetID := elem.Get("asset_id")

		if typ.Type != gjson.String || path.Type != gjson.String || assetID.Type != gjson.String {
			return true
		}

		notes = append(notes, ArtifactNote{
			Type:    typ.String(),
			Path:    path.String(),
			AssetID: assetID.String(),
		})
		return true
	})

	return notes
}

func toolName(data string, valid bool) string {
	if !valid {
		return ""
	}
	if tool := gjson.Get(data, "tool"); tool.Type == gjson.String {
		return tool.String()
	}
	return ""
}
