package config

// Watcher is implemented by anything that serves a hot-reloadable configuration.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
