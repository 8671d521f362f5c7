package theme

import (
	"fmt"
	"os"
	"strings"

	gotheme "github.com/goliatone/go-theme"
	"gopkg.in/yaml.v3"
)

type fileVariant struct {
	Tokens    map[string]string `yaml:"tokens"`
	Templates map[string]string `yaml:"templates"`
}

type fileManifest struct {
	Name      string                 `yaml:"name"`
	Version   string                 `yaml:"version"`
	Tokens    map[string]string      `yaml:"tokens"`
	Templates map[string]string      `yaml:"templates"`
	Variants  map[string]fileVariant `yaml:"variants"`
}

type themeFile struct {
	Themes []fileManifest `yaml:"themes"`
}

// LoadFile reads extra or overriding manifests from a YAML file.
func LoadFile(path string) ([]*gotheme.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("theme: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]*gotheme.Manifest, error) {
	var file themeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("theme: decode: %w", err)
	}

	manifests := make([]*gotheme.Manifest, 0, len(file.Themes))
	for i, fm := range file.Themes {
		if fm.Name == "" {
			return nil, fmt.Errorf("theme: entry %d has no name", i)
		}
		if err := checkTokens(fm.Name, "", fm.Tokens); err != nil {
			return nil, err
		}
		for name, v := range fm.Variants {
			if err := checkTokens(fm.Name, name, v.Tokens); err != nil {
				return nil, err
			}
		}
		m := &gotheme.Manifest{
			Name:      fm.Name,
			Version:   fm.Version,
			Tokens:    fm.Tokens,
			Templates: fm.Templates,
			Variants:  make(map[string]gotheme.Variant, len(fm.Variants)),
		}
		for name, v := range fm.Variants {
			m.Variants[name] = gotheme.Variant{
				Tokens:    v.Tokens,
				Templates: v.Templates,
			}
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Token values end up inside a <style> block, so they may not close the
// declaration, the rule or the element.
const forbiddenTokenChars = ";}<"

func checkTokens(themeName, variant string, tokens map[string]string) error {
	for key, value := range tokens {
		if strings.ContainsAny(key, forbiddenTokenChars) || strings.ContainsAny(value, forbiddenTokenChars) {
			where := themeName
			if variant != "" {
				where += "/" + variant
			}
			return fmt.Errorf("theme: %s token %q has a forbidden character (one of %q)", where, key, forbiddenTokenChars)
		}
	}
	return nil
}
