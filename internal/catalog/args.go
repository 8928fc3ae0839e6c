package catalog

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/apihook/apihook/apihook"
)

// DecodeArgs 将 {path, query, header, body} 形式的松散输入解码为 apihook.Args。
// 出现未知的顶层字段或字段不是对象时返回错误。
func DecodeArgs(raw map[string]any) (apihook.Args, error) {
	var args apihook.Args
	if len(raw) == 0 {
		return args, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &args,
		ErrorUnused: true,
	})
	if err != nil {
		return args, err
	}
	if err := decoder.Decode(raw); err != nil {
		return apihook.Args{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
