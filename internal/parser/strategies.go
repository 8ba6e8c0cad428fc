package parser

import (
	"regexp"
	"strings"
)

var (
	fencePatterns = []*regexp.Regexp{
		regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```"),
		regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```"),
	}

	narrativePrefix = regexp.MustCompile(`(?i)(?:narrative|answer|response):\s*["']?(.*?)["']?[ \t]*(?:\n|$)`)
	markerWords     = regexp.MustCompile(`(?i)checklist|citations|\[|\{`)
	checklistLine   = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•]|\d+[.)])[ \t]+(.+?)[ \t]*$`)
	citationLine    = regexp.MustCompile(`(?m)(doc\d+_chunk\d+|[0-9a-f]{32}_\d+|[\w-]+#[\w-]+):[ \t]*["']?([^"\n]+?)["']?[ \t]*$`)
)

// parseFenced 取第一个 ```json 代码块，没有时取第一个普通代码块，对其内容做直接解析。
func parseFenced(text string) (map[string]any, bool) {
	for _, re := range fencePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if doc, ok := parseDirect(m[1]); ok {
			return doc, true
		}
	}
	return nil, false
}

// parseHeuristic 从自由文本中重建结构。只有找到非空 narrative 时才算成功。
func parseHeuristic(text string) (map[string]any, bool) {
	narrative := findNarrative(text)
	if narrative == "" {
		return nil, false
	}

	checklist := make([]any, 0)
	for _, m := range checklistLine.FindAllStringSubmatch(text, -1) {
		checklist = append(checklist, strings.TrimSpace(m[1]))
	}

	citations := make(map[string]any)
	for _, m := range citationLine.FindAllStringSubmatch(text, -1) {
		citations[m[1]] = strings.TrimSpace(m[2])
	}

	return map[string]any{
		"narrative": narrative,
		"checklist": checklist,
		"citations": citations,
	}, true
}

// findNarrative 优先匹配文中任意位置的 "narrative:" / "answer:" / "response:"，
// 否则取第一个清单或引用标记之前的文本。没有任何标记时返回空。
func findNarrative(text string) string {
	if m := narrativePrefix.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}

	cut := -1
	for _, re := range []*regexp.Regexp{markerWords, checklistLine, citationLine} {
		if loc := re.FindStringIndex(text); loc != nil && (cut < 0 || loc[0] < cut) {
			cut = loc[0]
		}
	}
	if cut < 0 {
		return ""
	}
	return strings.TrimSpace(text[:cut])
}
