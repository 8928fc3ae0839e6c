package apihook

import "strings"

// 五个固定的操作名，对应 Operations 中的槽位。
const (
	FetchData  = "fetchData"
	PostData   = "postData"
	PutData    = "putData"
	PatchData  = "patchData"
	DeleteData = "deleteData"
)

var methodFunctionNames = map[string]string{
	"GET":    FetchData,
	"POST":   PostData,
	"PUT":    PutData,
	"PATCH":  PatchData,
	"DELETE": DeleteData,
}

// FunctionName 返回对外暴露的操作名：override 优先，否则按 HTTP 方法映射，未知方法回退 fetchData。
func FunctionName(method, override string) string {
	if override != "" {
		return override
	}
	if name, ok := methodFunctionNames[strings.ToUpper(method)]; ok {
		return name
	}
	return FetchData
}

// IsFunctionName 判断 name 是否为五个操作名之一。
func IsFunctionName(name string) bool {
	for _, known := range methodFunctionNames {
		if known == name {
			return true
		}
	}
	return false
}

// NormalizeMethod 返回大写的 HTTP 方法，并报告它是否为支持的五种方法之一。
func NormalizeMethod(method string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(method))
	_, ok := methodFunctionNames[upper]
	return upper, ok
}
