package strategy

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// FillTemplate 用命名占位符渲染提示词模板。
// 缺失的键不会中断渲染：占位符原地替换为 "Prompt Error: 'key'"，
// 并在返回值中给出缺失键列表，由调用方决定是否继续。
func FillTemplate(template string, vars map[string]string) (string, []string) {
	missingSet := make(map[string]struct{})
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		missingSet[key] = struct{}{}
		return fmt.Sprintf("Prompt Error: '%s'", key)
	})
	if len(missingSet) == 0 {
		return out, nil
	}
	missing := make([]string, 0, len(missingSet))
	for k := range missingSet {
		missing = append(missing, k)
	}
	sort.Strings(missing)
	return out, missing
}
