package i18n

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Catalog maps message keys to fmt templates
type Catalog struct {
	mu       sync.RWMutex
	messages map[string]string
}

// NewCatalog creates a catalog holding the built-in texts
func NewCatalog() (*Catalog, error) {
	c := &Catalog{messages: make(map[string]string)}
	if err := c.merge(defaultMessages); err != nil {
		return nil, fmt.Errorf("failed to parse built-in messages: %w", err)
	}
	return c, nil
}

// LoadFile overrides texts with the entries of a YAML file
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read messages file: %w", err)
	}
	if err := c.merge(data); err != nil {
		return fmt.Errorf("failed to parse messages file %s: %w", path, err)
	}
	slog.Info("messages loaded", "file", path)
	return nil
}

func (c *Catalog) merge(data []byte) error {
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, text := range entries {
		c.messages[key] = text
	}
	return nil
}

// Text renders the message for key. Unknown keys render as the key itself.
func (c *Catalog) Text(key string, args ...any) string {
	c.mu.RLock()
	text, ok := c.messages[key]
	c.mu.RUnlock()

	if !ok {
		slog.Warn("missing message", "key", key)
		return key
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// Has reports whether key is known
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.messages[key]
	return ok
}
