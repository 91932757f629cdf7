package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goPackFuncName = "TownPacks"

// LoadGoPackDir evaluates every .go file in dir and collects packs
// declared via TownPacks() ([]map[string]any[, error]).
func LoadGoPackDir(dir string) ([]PackFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pack: read %s: %w", trimmed, err)
	}
	var packs []PackFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		filePacks, err := loadGoPackFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		packs = append(packs, filePacks...)
	}
	if len(packs) == 0 {
		return nil, nil
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Path < packs[j].Path })
	return packs, nil
}

func loadGoPackFile(path string) ([]PackFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pack: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("pack: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("pack: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goPackFuncName)
	if err != nil {
		return nil, fmt.Errorf("pack: %s must define %s() ([]map[string]any, error): %w", path, goPackFuncName, err)
	}
	raws, callErr := invokePackFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("pack: %s: %w", path, callErr)
	}
	packs := make([]PackFile, 0, len(raws))
	for idx, raw := range raws {
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("pack: %s pack[%d]: %w", path, idx, err)
		}
		parsed, err := ParsePackYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("pack: %s pack[%d]: %w", path, idx, err)
		}
		packs = append(packs, PackFile{Pack: parsed, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return packs, nil
}

func invokePackFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", goPackFuncName)
	}
	fn := value
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goPackFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goPackFuncName)
	}
	packsVal := results[0]
	if len(results) == 2 {
		if !results[1].IsNil() {
			if e, ok := results[1].Interface().(error); ok && e != nil {
				return nil, e
			}
			return nil, fmt.Errorf("%s returned non-error second value", goPackFuncName)
		}
	}
	packs, ok := packsVal.Interface().([]map[string]any)
	if ok {
		return packs, nil
	}
	if packsVal.Kind() == reflect.Slice {
		result := make([]map[string]any, packsVal.Len())
		for i := 0; i < packsVal.Len(); i++ {
			entry := packsVal.Index(i).Interface()
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not map[string]any", goPackFuncName, i)
			}
			result[i] = m
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s must return []map[string]any", goPackFuncName)
}
