package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rag-pipeline-go/internal/model"
)

var checklistSplit = regexp.MustCompile(`[,\n]`)

// Normalize 把任意解析得到的文档强制转换为统一结构，缺失字段取空值。
func Normalize(doc map[string]any) model.ParsedResult {
	result := model.ParsedResult{
		Narrative: "",
		Checklist: []string{},
		Citations: map[string]string{},
	}

	if v, ok := doc["narrative"]; ok {
		result.Narrative = stringify(v)
	}

	switch v := doc["checklist"].(type) {
	case []any:
		for _, item := range v {
			result.Checklist = append(result.Checklist, stringify(item))
		}
	case string:
		for _, item := range checklistSplit.Split(v, -1) {
			if s := strings.TrimSpace(item); s != "" {
				result.Checklist = append(result.Checklist, s)
			}
		}
	}

	if v, ok := doc["citations"].(map[string]any); ok {
		for k, val := range v {
			result.Citations[k] = stringify(val)
		}
	}
	return result
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
