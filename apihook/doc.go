// Package apihook 根据单个 HTTP 接口的声明式配置生成可复用的请求执行单元（hook）。
//
// 使用流程：
//  1. 通过 CreateHook 传入 Config，路径参数提取与参数分类在此时一次性完成；
//  2. 每次调用 Hook.Activate 得到一个独立的 Instance，拥有自己的 response/error/loading 状态；
//  3. 调用 Instance.Operations 中被选中的操作（fetchData/postData/...）发起请求，
//     新请求会同步取消上一次未完成的请求，过期请求的回调不会再修改状态；
//  4. 不再需要时调用 Instance.Dispose 释放资源。
//
// 所有失败（缺少必填参数、传输错误、响应校验失败）都记录在 State.Error 中并通过
// Callbacks.OnError 通知，不会以 panic 的形式跨出 Instance 边界。
package apihook
