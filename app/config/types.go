package config

// Seed describes one subscription to register at startup: a source URL and
// the identifier of the owning user.
type Seed struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
}
