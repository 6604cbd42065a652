package intelliscore

import "github.com/speechmetrics/intelliscore/internal/archive"

type Config struct {
	CorpusRoot  string
	CleanDir    string // clean-speech folder for reference-based metrics
	OutputDir   string
	Metric      string
	Extension   string
	StrictRate  bool   // reject off-rate input instead of resampling
	ArchivePath string // empty disables the run archive
	Logger      Logger
}

type Option func(*Config)

func WithCorpusRoot(path string) Option {
	return func(c *Config) {
		c.CorpusRoot = path
	}
}

func WithCleanDir(path string) Option {
	return func(c *Config) {
		c.CleanDir = path
	}
}

func WithOutputDir(path string) Option {
	return func(c *Config) {
		c.OutputDir = path
	}
}

func WithMetric(name string) Option {
	return func(c *Config) {
		c.Metric = name
	}
}

func WithExtension(ext string) Option {
	return func(c *Config) {
		c.Extension = ext
	}
}

func WithStrictRate(strict bool) Option {
	return func(c *Config) {
		c.StrictRate = strict
	}
}

func WithArchivePath(path string) Option {
	return func(c *Config) {
		c.ArchivePath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		OutputDir:   "scores",
		Metric:      "stipa",
		Extension:   ".wav",
		ArchivePath: archive.DefaultDBFile,
	}
}
