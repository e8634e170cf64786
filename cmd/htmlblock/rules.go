package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/htmlblock/pkg/config"
)

func writeRules(w io.Writer, rules config.RulesFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rules); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}
