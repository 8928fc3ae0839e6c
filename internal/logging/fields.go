package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// EndpointFields 描述一个已注册的 Endpoint，供启动摘要与网关调用日志复用。
func EndpointFields(name, method, functionName string) logrus.Fields {
	return logrus.Fields{
		"endpoint": name,
		"method":   method,
		"function": functionName,
	}
}

// GatewayFields 为网关请求附加 request id 与来源地址。
func GatewayFields(requestID, remoteIP string) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"remote_ip":  remoteIP,
	}
}
