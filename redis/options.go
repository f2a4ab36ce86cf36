package redis

import (
	"errors"
	"time"
)

// ClientOptions Redis 客户端配置选项
type ClientOptions struct {
	Name         string        `json:"name" yaml:"name"`                 // 客户端名称
	Addr         string        `json:"addr" yaml:"addr"`                 // Redis 服务器地址 (host:port)
	Username     string        `json:"username" yaml:"username"`         // 用户名（可选）
	Password     string        `json:"password" yaml:"password"`         // 密码（可选）
	DB           int           `json:"db" yaml:"db"`                     // 数据库编号
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`   // 连接超时时间
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`   // 读取超时时间
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"` // 写入超时时间
	PoolSize     int           `json:"poolSize" yaml:"poolSize"`         // 连接池大小
	MinIdleConns int           `json:"minIdleConns" yaml:"minIdleConns"` // 最小空闲连接数
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`     // 最大重试次数
	PingOnStart  bool          `json:"pingOnStart" yaml:"pingOnStart"`   // 创建后立即 Ping 校验连接
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		PingOnStart:  true,
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return errors.New("redis client name is required")
	}
	if o.Addr == "" {
		return errors.New("redis address is required")
	}
	if o.DB < 0 {
		return errors.New("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return errors.New("redis dial timeout must be positive")
	}
	if o.PoolSize < 0 || o.MinIdleConns < 0 {
		return errors.New("redis pool size must be non-negative")
	}
	return nil
}
