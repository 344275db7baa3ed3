package toolengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestExtensions lists the file types LoadManifests reads.
var manifestExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// LoadManifests reads every manifest file directly under dir, in file name
// order. A file may hold a single manifest or a list of manifests.
func LoadManifests(dir string) ([]PluginManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if manifestExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var manifests []PluginManifest
	for _, name := range names {
		loaded, err := LoadManifestFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, loaded...)
	}
	return manifests, nil
}

// LoadManifestFile reads one JSON or YAML manifest file.
func LoadManifestFile(path string) ([]PluginManifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from a configured manifest dir
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifests []PluginManifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		manifests, err = decodeJSONManifests(data)
	default:
		manifests, err = decodeYAMLManifests(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	for i, m := range manifests {
		if m.Identifier == "" {
			return nil, fmt.Errorf("manifest %s[%d]: identifier is required", path, i)
		}
	}
	return manifests, nil
}

func decodeJSONManifests(data []byte) ([]PluginManifest, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []PluginManifest
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single PluginManifest
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []PluginManifest{single}, nil
}

func decodeYAMLManifests(data []byte) ([]PluginManifest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	if node.Content[0].Kind == yaml.SequenceNode {
		var list []PluginManifest
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single PluginManifest
	if err := node.Decode(&single); err != nil {
		return nil, err
	}
	return []PluginManifest{single}, nil
}
