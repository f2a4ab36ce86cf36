package mongodb

import (
	"fmt"
	"time"
)

// ClientOptions MongoDB 客户端配置选项
type ClientOptions struct {
	Name        string        `json:"name" yaml:"name"`
	URI         string        `json:"uri" yaml:"uri"`
	Database    string        `json:"database" yaml:"database"` // 默认数据库，供 Factory.Database 使用
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	AppName     string        `json:"appName" yaml:"appName"`
	MaxPoolSize uint64        `json:"maxPoolSize" yaml:"maxPoolSize"`
	MinPoolSize uint64        `json:"minPoolSize" yaml:"minPoolSize"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	PingOnStart bool          `json:"pingOnStart" yaml:"pingOnStart"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *ClientOptions {
	return &ClientOptions{
		Name:        name,
		URI:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
		PingOnStart: true,
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("mongo timeout must be positive")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("mongo min pool size exceeds max pool size")
	}
	return nil
}
