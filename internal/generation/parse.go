package generation

import (
	"encoding/json"
	"strings"
)

// extractJSON trims code fences and any prose around the outermost object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") || !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func decodeContent(step, raw string, out any) error {
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return malformed(step, "invalid JSON: %v", err)
	}
	return nil
}
