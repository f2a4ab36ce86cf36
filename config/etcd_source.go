package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）
}

// EtcdSource etcd 配置源。
// 键去掉前缀后以 "/" 分层，值依次尝试按 JSON、YAML 解析，失败时作为字符串。
type EtcdSource struct {
	Options EtcdOptions

	// Client 非空时直接使用，不再自行创建和关闭连接
	Client *clientv3.Client
}

// NewEtcdSource 创建 etcd 配置源并补全默认超时
func NewEtcdSource(opts EtcdOptions) *EtcdSource {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return &EtcdSource{Options: opts}
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) client() (*clientv3.Client, func(), error) {
	if s.Client != nil {
		return s.Client, func() {}, nil
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("创建 etcd 客户端失败: %w", err)
	}
	return cli, func() { _ = cli.Close() }, nil
}

func (s *EtcdSource) keyPrefix() string {
	if s.Options.Prefix == "" {
		return "/"
	}
	return s.Options.Prefix
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, release, err := s.client()
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	resp, err := cli.Get(ctx, s.keyPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("读取 etcd 配置失败: %w", err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := strings.TrimPrefix(string(kv.Key), s.Options.Prefix)
		key = strings.Trim(key, "/")
		if key == "" {
			continue
		}
		setNestedValue(result, strings.ReplaceAll(key, "/", ":"), decodeEtcdValue(kv.Value))
	}
	return result, nil
}

// Watch 监听前缀下的变更，每批事件触发一次 notify
func (s *EtcdSource) Watch(ctx context.Context, notify func()) error {
	cli, release, err := s.client()
	if err != nil {
		return err
	}
	defer release()

	for resp := range cli.Watch(ctx, s.keyPrefix(), clientv3.WithPrefix()) {
		if err := resp.Err(); err != nil {
			return fmt.Errorf("监听 etcd 配置失败: %w", err)
		}
		if len(resp.Events) > 0 {
			notify()
		}
	}
	return ctx.Err()
}

func decodeEtcdValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	if err := yaml.Unmarshal(raw, &v); err == nil && v != nil {
		if _, isString := v.(string); !isString {
			return normalizeYaml(v)
		}
	}
	return string(raw)
}
