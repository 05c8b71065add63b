package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Models on the smaller end of the scale leak raw JSON and fenced tool
// calls into their prose. CleanResponse strips those artifacts so only
// natural language reaches the user.

var (
	jsonFenceRe    = regexp.MustCompile("(?s)```json\\s*\\n?.*?\\n?```")
	braceFenceRe   = regexp.MustCompile("(?s)```\\s*\\n?\\{.*?\\}\\s*\\n?```")
	toolCallJSONRe = regexp.MustCompile(`(?s)\{\s*"(?:type|name)":\s*"(?:function|add_task|list_tasks|get_task|update_task|delete_task|restore_task|complete_task)"[^}]*(?:\{[^}]*\}[^}]*)?\}`)
	blankRunsRe    = regexp.MustCompile(`\n{3,}`)
)

func CleanResponse(content string) string {
	if content == "" {
		return content
	}

	content = jsonFenceRe.ReplaceAllString(content, "")
	content = braceFenceRe.ReplaceAllString(content, "")
	content = toolCallJSONRe.ReplaceAllString(content, "")

	// Drop lines that are themselves JSON, plus bare-brace blocks.
	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	skipJSON := false
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "{") && strings.HasSuffix(stripped, "}") {
			if json.Valid([]byte(stripped)) {
				continue
			}
		}
		if stripped == "{" {
			skipJSON = !skipJSON
			continue
		}
		if stripped == "}" {
			skipJSON = false
			continue
		}
		if skipJSON {
			continue
		}
		cleaned = append(cleaned, line)
	}
	content = strings.Join(cleaned, "\n")

	content = blankRunsRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
