package config

// Load 绑定配置节到 T，section 为空时绑定整个配置
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// LoadOrDefault 绑定配置节到 def 的副本之上，配置节不存在时直接返回 def
func LoadOrDefault[T any](cfg Configuration, section string, def T) (T, error) {
	if !cfg.Exists(section) {
		return def, nil
	}
	t := def
	err := cfg.Bind(section, &t)
	return t, err
}
