package config

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// Encode writes the resolved configuration as TOML. Paths are already
// expanded, so the output reflects what commands will actually use.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
