package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the walkie directory tree under the user's home.
type Paths struct {
	HomeDir string
}

// NewPaths returns the paths for the current user.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.walkie
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns ~/.walkie/config.yaml
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// HistoryDir returns the message history database directory of a
// context.
func (p *Paths) HistoryDir(context string) string {
	return filepath.Join(p.BaseDir(), "history", context)
}

// AudioDir returns the default local audio store of a context.
func (p *Paths) AudioDir(context string) string {
	return filepath.Join(p.BaseDir(), "audio", context)
}

// Ensure creates dir and its parents.
func (p *Paths) Ensure(dir string) (string, error) {
	return dir, os.MkdirAll(dir, 0755)
}
