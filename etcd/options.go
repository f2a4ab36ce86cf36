package etcd

import (
	"fmt"
	"time"
)

// ClientOptions etcd 客户端配置选项
type ClientOptions struct {
	Name               string        `json:"name" yaml:"name"`                             // 客户端名称
	Endpoints          []string      `json:"endpoints" yaml:"endpoints"`                   // etcd 服务器地址列表
	DialTimeout        time.Duration `json:"dialTimeout" yaml:"dialTimeout"`               // 连接超时时间
	Username           string        `json:"username" yaml:"username"`                     // 用户名（可选）
	Password           string        `json:"password" yaml:"password"`                     // 密码（可选）
	AutoSyncInterval   time.Duration `json:"autoSyncInterval" yaml:"autoSyncInterval"`     // 自动同步间隔（可选）
	MaxCallSendMsgSize int           `json:"maxCallSendMsgSize" yaml:"maxCallSendMsgSize"` // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           `json:"maxCallRecvMsgSize" yaml:"maxCallRecvMsgSize"` // 最大接收消息大小（可选）
	PingOnStart        bool          `json:"pingOnStart" yaml:"pingOnStart"`               // 启动时检查集群状态
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		PingOnStart: true,
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}
