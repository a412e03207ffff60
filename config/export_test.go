package config

func (c *Config) Apply(lookup func(key string) (string, bool)) error {
	return c.apply(lookup)
}
