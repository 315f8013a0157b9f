package budget

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a declarative YAML description of groups and categories,
// pushed through the same CRUD calls the interactive commands use.
type Manifest struct {
	Groups []GroupSpec `yaml:"groups"`
}

type GroupSpec struct {
	Name       string         `yaml:"name"`
	Categories []CategorySpec `yaml:"categories"`
}

type CategorySpec struct {
	Name      string  `yaml:"name"`
	Estimated float64 `yaml:"estimated"`
	Assigned  float64 `yaml:"assigned"`
}

// LoadManifest reads a manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(m.Groups) == 0 {
		return nil, fmt.Errorf("manifest has no groups")
	}
	return &m, nil
}

// Apply creates every group and its categories in order. Group names
// already present are reused instead of duplicated.
func (v *View) Apply(ctx context.Context, m *Manifest) error {
	for _, spec := range m.Groups {
		groupID, err := v.ensureGroup(ctx, spec.Name)
		if err != nil {
			return err
		}
		for _, cat := range spec.Categories {
			if err := v.AddCategory(ctx, groupID, cat.Name); err != nil {
				return err
			}
			if cat.Estimated != 0 || cat.Assigned != 0 {
				id, ok := v.categoryID(cat.Name, groupID)
				if !ok {
					return fmt.Errorf("category %q missing after create", cat.Name)
				}
				if err := v.EditCategory(ctx, id, &cat.Estimated, &cat.Assigned); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (v *View) ensureGroup(ctx context.Context, name string) (int64, error) {
	v.mu.Lock()
	for _, g := range v.groups {
		if g.Name == name {
			v.mu.Unlock()
			return g.ID, nil
		}
	}
	v.mu.Unlock()

	if err := v.AddGroup(ctx, name); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, g := range v.groups {
		if g.Name == name {
			return g.ID, nil
		}
	}
	return 0, fmt.Errorf("group %q missing after create", name)
}

func (v *View) categoryID(name string, groupID int64) (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range v.categories {
		if c.Name != name {
			continue
		}
		if groupID == Ungrouped && c.GroupID == nil {
			return c.ID, true
		}
		if c.GroupID != nil && *c.GroupID == groupID {
			return c.ID, true
		}
	}
	return 0, false
}
