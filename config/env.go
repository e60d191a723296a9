// Package config resolves settings from three layers, highest first: the
// process environment, a .env file and a JSON file. Keys are upper-case;
// nested JSON objects flatten with underscores, so {"filemanager":{"mode":
// "storage"}} sets FILEMANAGER_MODE.
package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Default file locations. CONFIG_FILE and ENV_FILE in the environment
// override them.
const (
	DefaultConfigFile = "config/app.json"
	DefaultEnvFile    = ".env"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu      sync.RWMutex
	fileSet = map[string]string{}
	pinned  = map[string]string{}
)

// Load reads the config files once. Missing files are not an error.
func Load() error {
	loadOnce.Do(func() {
		jsonPath := envOr("CONFIG_FILE", DefaultConfigFile)
		envPath := envOr("ENV_FILE", DefaultEnvFile)

		merged, err := readLayers(jsonPath, envPath)
		if err != nil {
			loadErr = err
			return
		}
		mu.Lock()
		fileSet = merged
		mu.Unlock()
	})
	return loadErr
}

// Reset drops everything read from files and every Set override, so the
// next Load starts over.
func Reset() {
	mu.Lock()
	fileSet = map[string]string{}
	pinned = map[string]string{}
	mu.Unlock()
	loadOnce = sync.Once{}
	loadErr = nil
}

// Set pins key to value above every other layer, including the environment.
func Set(key, value string) {
	_ = Load()
	mu.Lock()
	pinned[normalizeKey(key)] = value
	mu.Unlock()
}

// Get reads any key with a fallback for unset or blank values.
func Get(key, fallback string) string {
	_ = Load()
	return get(normalizeKey(key), fallback)
}

func get(key, fallback string) string {
	mu.RLock()
	v, ok := pinned[key]
	mu.RUnlock()
	if ok {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	mu.RLock()
	v = strings.TrimSpace(fileSet[key])
	mu.RUnlock()
	if v != "" {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// readLayers merges the JSON file under the .env file.
func readLayers(jsonPath, envPath string) (map[string]string, error) {
	out := map[string]string{}
	if err := readJSON(jsonPath, out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := readDotEnv(envPath, out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return out, nil
}

func readJSON(path string, out map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	flatten("", doc, out)
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := normalizeKey(k)
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case bool:
			out[key] = strconv.FormatBool(val)
		case float64:
			out[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
			out[key] = strings.Join(parts, ",")
		}
	}
}

func readDotEnv(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := parseEnvLine(sc.Text())
		if ok {
			out[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// parseEnvLine accepts KEY=value, export KEY=value and quoted values.
// Unquoted values end at " #".
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	k, v, found := strings.Cut(line, "=")
	key = normalizeKey(k)
	if !found || key == "" {
		return "", "", false
	}

	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') {
		if end := strings.IndexByte(v[1:], v[0]); end >= 0 {
			return key, v[1 : end+1], true
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return key, v, true
}
