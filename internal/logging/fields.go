package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ObjectFields 提供 kind/id/action 字段，供 Manager 的磁盘与回源日志复用。
func ObjectFields(kind, id, action string) logrus.Fields {
	return logrus.Fields{
		"kind":   kind,
		"id":     id,
		"action": action,
	}
}

// RequestFields 提供请求 ID、kind 与命中状态字段，供 HTTP 层日志复用。
func RequestFields(requestID, kind, id string, cached bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"kind":       kind,
		"id":         id,
		"cached":     cached,
	}
}
