package avatar

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed data/*.json
var embeddedAvatars embed.FS

// DefaultAvatar is the name of the embedded avatar used when none is
// configured.
const DefaultAvatar = "default"

// LoadEmbedded loads an avatar from the embedded data.
func LoadEmbedded(name string) (*Avatar, error) {
	data, err := embeddedAvatars.ReadFile(fmt.Sprintf("data/%s.json", name))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return parseAvatarJSON(name, data)
}

// LoadFromFile loads an avatar from a JSON file on disk.
func LoadFromFile(path string) (*Avatar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	return parseAvatarJSON(name, data)
}

// Load resolves ref as a file path when it ends in .json, otherwise as an
// embedded avatar name. An empty ref loads DefaultAvatar.
func Load(ref string) (*Avatar, error) {
	switch {
	case ref == "":
		return LoadEmbedded(DefaultAvatar)
	case strings.HasSuffix(ref, ".json"):
		return LoadFromFile(ref)
	default:
		return LoadEmbedded(ref)
	}
}

// ListEmbedded returns the names of all embedded avatars.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedAvatars.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded avatars: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return names, nil
}

// parseAvatarJSON parses and validates an avatar document.
func parseAvatarJSON(name string, data []byte) (*Avatar, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAvatar, err)
	}

	if len(doc.Joints) == 0 {
		return nil, fmt.Errorf("%w: avatar %q has no joints", ErrInvalidAvatar, name)
	}

	joints := make(map[string]bool, len(doc.Joints))
	for _, j := range doc.Joints {
		joints[j] = true
	}
	shapes := make(map[string]bool, len(doc.Blendshapes))
	for _, b := range doc.Blendshapes {
		shapes[b] = true
	}

	for j := range doc.PoseCorrections {
		if !joints[j] {
			return nil, fmt.Errorf("%w: avatar %q corrects unknown joint %q", ErrInvalidAvatar, name, j)
		}
	}

	mappings := doc.Mappings
	if mappings == nil {
		mappings = DefaultMappings()
	}
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if m.Joint != "" && !joints[m.Joint] {
			return nil, fmt.Errorf("%w: avatar %q maps %s to unknown joint %q", ErrInvalidAvatar, name, m.Signal, m.Joint)
		}
		if m.Blendshape != "" && !shapes[m.Blendshape] {
			return nil, fmt.Errorf("%w: avatar %q maps %s to unknown blendshape %q", ErrInvalidAvatar, name, m.Signal, m.Blendshape)
		}
	}
	doc.Mappings = mappings

	return &Avatar{Name: name, Document: doc}, nil
}
