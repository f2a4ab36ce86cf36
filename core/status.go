package core

// Status 表示模块节点的搭建状态。
type Status int

const (
	// StatusNotSetup 尚未开始搭建
	StatusNotSetup Status = iota
	// StatusSettingUp 正在搭建
	StatusSettingUp
	// StatusReady 已就绪
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusNotSetup:
		return "NOT_SETUP"
	case StatusSettingUp:
		return "SETTING_UP"
	case StatusReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}
