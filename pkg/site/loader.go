package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a site manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json for JSON.
// If the extension is unrecognized, YAML is attempted first, then JSON.
//
// After loading, the manifest is validated against the JSON schema plus
// semantic checks, and defaults are applied to optional fields.
//
// Returns an error if:
//   - The file cannot be read (not found, permission denied, etc.)
//   - The file content is not valid YAML or JSON
//   - The manifest fails schema or semantic validation
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("site manifest not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading site manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read site manifest: %w", err)
	}

	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
//
// Schema validation runs on the raw data (converted to JSON) before parsing
// into the typed struct, so unknown fields are rejected rather than silently
// dropped (additionalProperties: false in the schema).
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("site manifest is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	manifest, err := parseManifest(data, path)
	if err != nil {
		return nil, err
	}

	manifest.ApplyDefaults()

	// Semantic checks run after defaults so defaulted fields are covered too.
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	return manifest, nil
}

// LoadFromReader reads and validates a manifest from an io.Reader.
//
// The path parameter is used for error messages and format detection.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read site manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// parseManifest parses the manifest data based on file extension.
func parseManifest(data []byte, path string) (*Manifest, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		// Unknown extension: try YAML first (more permissive), then JSON.
		manifest, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return manifest, nil
		}
		manifest, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return manifest, nil
		}
		return nil, fmt.Errorf("failed to parse site manifest (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid JSON in site manifest: %w", err)
	}
	return &manifest, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid YAML in site manifest: %w", err)
	}
	return &manifest, nil
}

// toJSON converts the input data to JSON format for schema validation.
func toJSON(data []byte, path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in site manifest: %w", err)
		}
		return data, nil

	case ".yaml", ".yml":
		return yamlToJSON(data)

	default:
		// YAML is a superset of JSON, so try it first.
		jsonData, err := yamlToJSON(data)
		if err == nil {
			return jsonData, nil
		}
		var raw any
		if jsonErr := json.Unmarshal(data, &raw); jsonErr == nil {
			return data, nil
		}
		return nil, fmt.Errorf("failed to parse site manifest (tried YAML and JSON): %w", err)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in site manifest: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert site manifest to JSON: %w", err)
	}
	return jsonData, nil
}
