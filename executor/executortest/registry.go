package executortest

import "github.com/onflow/cachingqueryexecutor/executor"

// Registry is a static in-memory executor.Registry for tests.
type Registry struct {
	Plugins map[string]executor.CachePlugin
	Codecs  map[string]executor.Codec
}

func NewRegistry() *Registry {
	return &Registry{Plugins: map[string]executor.CachePlugin{}, Codecs: map[string]executor.Codec{}}
}

func (r *Registry) Plugin(name string) (executor.CachePlugin, bool) {
	p, ok := r.Plugins[name]
	return p, ok
}

func (r *Registry) Codec(name string) (executor.Codec, bool) {
	c, ok := r.Codecs[name]
	return c, ok
}
