package event

import (
	"encoding/json"
	"strings"
)

// subLabels tolerates the sub_label shapes Frigate has shipped over time:
// null, a bare string, an array of strings, an array of
// {"subLabel": "..."} objects, or a ["name", score] pair.
type subLabels []string

func (s *subLabels) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = appendLabel(nil, single)
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// Unexpected shape: drop the sub label rather than the frame.
		*s = nil
		return nil
	}

	var out []string
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			out = appendLabel(out, str)
			continue
		}
		var obj struct {
			SubLabel string `json:"subLabel"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.SubLabel != "" {
			out = appendLabel(out, obj.SubLabel)
		}
		// Numbers (confidence score of a ["name", score] pair) are skipped.
	}
	*s = out
	return nil
}

func appendLabel(out []string, label string) []string {
	label = strings.TrimSpace(label)
	if label == "" {
		return out
	}
	return append(out, label)
}
