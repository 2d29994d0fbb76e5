package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/codezen/internal/core"
)

var (
	ErrGuidelineFileNotFound = errors.New("guideline file not found")
	ErrGuidelineFileParsing  = errors.New("guideline file parsing failed")
)

// LoadGuidelinePack reads a YAML guideline file. Blank rules are dropped and
// the remaining rules keep their file order.
func LoadGuidelinePack(path string) (*core.GuidelinePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrGuidelineFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read guideline file %s: %w", path, err)
	}

	pack := &core.GuidelinePack{}
	if err := yaml.Unmarshal(data, pack); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGuidelineFileParsing, err)
	}

	rules := make([]string, 0, len(pack.Guidelines))
	for _, rule := range pack.Guidelines {
		if strings.TrimSpace(rule) == "" {
			continue
		}
		rules = append(rules, rule)
	}
	pack.Guidelines = rules
	return pack, nil
}
