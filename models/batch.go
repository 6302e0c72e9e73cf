package models

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Batch entry statuses.
const (
	StatusFoundInDB          = "found_in_db"
	StatusParsedSuccessfully = "parsed_successfully"
	StatusParseFailed        = "parse_failed"
	StatusNotFound           = "not_found"
)

// BatchRequest is the payload for POST /api/v1/phones/parse.
type BatchRequest struct {
	// Models is either a list of model names or a single name.
	Models json.RawMessage `json:"models"`

	// WebhookURL optionally receives the batch result once it is ready.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchResultEntry is the outcome for one requested model.
type BatchResultEntry struct {
	Model     string   `json:"model"`
	Status    string   `json:"status"`
	Data      Document `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorCode string   `json:"error_code,omitempty"`
	URL       string   `json:"url,omitempty"`
	Code      int      `json:"code"`
}

// FailedEntry builds a batch entry for a per-model failure.
func FailedEntry(model string, err error) BatchResultEntry {
	e := AsError(err)
	entry := BatchResultEntry{
		Model:     model,
		Status:    StatusParseFailed,
		Error:     e.Error(),
		ErrorCode: e.Code,
		URL:       e.URL,
		Code:      http.StatusInternalServerError,
	}
	if e.Code == ErrCodeNotFound {
		entry.Status = StatusNotFound
		entry.Code = http.StatusNotFound
	}
	return entry
}

// ModelList is the normalised "models" value. Names holds the string
// elements in input order. Rejected holds a failed entry for each element
// that is not a string, keyed by its position in the request.
type ModelList struct {
	Names    []string
	Rejected map[int]BatchResultEntry
}

// Len is the number of elements in the request.
func (l *ModelList) Len() int {
	return len(l.Names) + len(l.Rejected)
}

// Merge interleaves the entries produced for Names with the rejected
// entries, restoring request order. processed must have one entry per name.
func (l *ModelList) Merge(processed []BatchResultEntry) []BatchResultEntry {
	out := make([]BatchResultEntry, 0, l.Len())
	next := 0
	for i := 0; i < l.Len(); i++ {
		if e, ok := l.Rejected[i]; ok {
			out = append(out, e)
			continue
		}
		out = append(out, processed[next])
		next++
	}
	return out
}

// ParseModels normalises the raw "models" value: a list is taken element by
// element and a single string becomes a one-element list. A missing, null or
// empty value is an INVALID_INPUT error. A list element that is not a string
// does not fail the request; it becomes a parse_failed entry.
func (r *BatchRequest) ParseModels() (*ModelList, error) {
	raw := bytes.TrimSpace(r.Models)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, NewError(ErrCodeInvalidInput, "No phone models provided", nil)
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, NewError(ErrCodeInvalidInput, "models must be a list", err)
		}
		if len(items) == 0 {
			return nil, NewError(ErrCodeInvalidInput, "No phone models provided", nil)
		}
		list := &ModelList{Names: make([]string, 0, len(items))}
		for i, item := range items {
			var name string
			if err := json.Unmarshal(item, &name); err != nil {
				if list.Rejected == nil {
					list.Rejected = make(map[int]BatchResultEntry)
				}
				list.Rejected[i] = FailedEntry(string(item),
					NewError(ErrCodeInvalidInput, "model name must be a string", nil))
				continue
			}
			list.Names = append(list.Names, name)
		}
		return list, nil
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, NewError(ErrCodeInvalidInput, "models must be a string or a list of strings", err)
		}
		if name == "" {
			return nil, NewError(ErrCodeInvalidInput, "No phone models provided", nil)
		}
		return &ModelList{Names: []string{name}}, nil
	default:
		return nil, NewError(ErrCodeInvalidInput, "models must be a string or a list of strings", nil)
	}
}

// MarshalJSON always emits data for found_in_db and parsed_successfully
// entries, even when the document is empty, and never for failed ones.
func (e BatchResultEntry) MarshalJSON() ([]byte, error) {
	type entry BatchResultEntry
	out := struct {
		entry
		Data *Document `json:"data,omitempty"`
	}{entry: entry(e)}
	if e.Status == StatusFoundInDB || e.Status == StatusParsedSuccessfully {
		data := e.Data
		if data == nil {
			data = Document{}
		}
		out.Data = &data
	}
	return json.Marshal(out)
}
