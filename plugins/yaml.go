package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParsePackYAML decodes and validates a single pack payload.
func ParsePackYAML(data []byte) (PackDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return PackDefinition{}, fmt.Errorf("pack: payload is empty")
	}
	var def PackDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return PackDefinition{}, fmt.Errorf("pack: decode: %w", err)
	}
	if err := def.Validate(); err != nil {
		return PackDefinition{}, err
	}
	return def.Normalized(), nil
}

// LoadPackFile reads a YAML pack from disk.
func LoadPackFile(path string) (PackFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PackFile{}, fmt.Errorf("pack: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return PackFile{}, fmt.Errorf("pack: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return PackFile{}, fmt.Errorf("pack: read %s: %w", path, err)
	}
	def, err := ParsePackYAML(data)
	if err != nil {
		return PackFile{}, fmt.Errorf("pack: %s: %w", path, err)
	}
	return PackFile{Pack: def, Path: filepath.Clean(path)}, nil
}

// LoadPackDir scans a directory for *.yaml packs. Missing directories are
// treated as "no packs" to simplify startup.
func LoadPackDir(dir string) ([]PackFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("pack: read %s: %w", trimmed, err)
	}
	var packs []PackFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isYAMLFile(name) {
			continue
		}
		pack, err := LoadPackFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	if len(packs) == 0 {
		return nil, nil
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Path < packs[j].Path })
	return packs, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
