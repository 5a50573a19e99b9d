// Package normalize shapes raw Link backend responses into display text,
// result cards, citations and outreach state.
package normalize

import (
	"encoding/json"

	"bondedlink/internal/link/model"
)

// Result is the canonical view of one backend response.
type Result struct {
	Text      string
	Cards     []Card
	Citations []any
	Outreach  *model.OutreachState
}

var answerFields = []string{"message", "response", "text", "answer"}

// Normalize never fails: missing or malformed fields fall back to empty text,
// nil citations, no cards and no outreach. Non-object payloads are coerced to
// text.
func Normalize(raw any) Result {
	obj, ok := asMap(raw)
	if !ok {
		return Result{Text: model.CoerceText(raw)}
	}

	return Result{
		Text:      extractText(obj),
		Cards:     BuildCards(obj),
		Citations: Citations(obj),
		Outreach:  ParseOutreach(obj),
	}
}

func extractText(obj map[string]any) string {
	for _, key := range answerFields {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		if s := model.CoerceText(v); s != "" {
			return s
		}
	}
	return ""
}

// Citations returns the first non-nil citation value found at the payload,
// response or metadata level. A single citation is wrapped in a list.
func Citations(obj map[string]any) []any {
	response, _ := asMap(obj["response"])
	metadata, _ := asMap(obj["metadata"])
	responseMeta, _ := asMap(response["metadata"])

	for _, candidate := range []any{
		obj["citations"],
		response["citations"],
		metadata["citations"],
		responseMeta["citations"],
	} {
		switch c := candidate.(type) {
		case nil:
			continue
		case []any:
			return c
		default:
			return []any{c}
		}
	}
	return nil
}

// ParseOutreach reads the outreach run reference under any of the spellings
// the backend has used. It returns nil when no run id is present.
func ParseOutreach(obj map[string]any) *model.OutreachState {
	meta := model.Metadata(obj)
	nested := meta.Map("outreach")

	runID := meta.FirstText("run_id", "runId", "outreach_run_id")
	if runID == "" {
		runID = nested.FirstText("run_id", "runId")
	}
	if runID == "" {
		return nil
	}

	status := meta.FirstText("outreach_status", "status")
	if status == "" {
		status = nested.FirstText("status")
	}
	return &model.OutreachState{RunID: runID, Status: status}
}

// DecodeJSON parses a response body into an object. Invalid JSON or a
// non-object document yields an empty map.
func DecodeJSON(b []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, t != nil
	case model.Metadata:
		return map[string]any(t), t != nil
	}
	return nil, false
}
