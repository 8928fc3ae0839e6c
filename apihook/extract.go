package apihook

import "regexp"

var pathParamPattern = regexp.MustCompile(`:(\w+)`)

// ExtractPathParams 按出现顺序返回模板中的 :name 占位符名称，重复项保留。
func ExtractPathParams(template string) []string {
	matches := pathParamPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}
