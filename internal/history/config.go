package history

// Config controls the InfluxDB history recorder.
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Org             string `yaml:"org"`
	Bucket          string `yaml:"bucket"`
	BatchSize       int    `yaml:"batch_size"`
	FlushIntervalMs int    `yaml:"flush_interval_ms"`
}

const (
	defaultBatchSize       = 100
	defaultFlushIntervalMs = 10000
)

func (c Config) batchSize() uint {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(c.BatchSize)
}

func (c Config) flushInterval() uint {
	if c.FlushIntervalMs <= 0 {
		return defaultFlushIntervalMs
	}
	return uint(c.FlushIntervalMs)
}
