package middleware

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// MetadataFile is the parsed form of a meta file, which can override the
// class and properties of the instance produced by its companion file or
// directory.
type MetadataFile struct {
	// ClassName overrides the instance class when non-empty.
	ClassName string
	// Properties are merged over the instance's properties.
	Properties instance.Properties
	// IgnoreUnknownInstances marks unexpected children as preserved.
	IgnoreUnknownInstances *bool
	// Path is the meta file's own path, retained for diagnostics.
	Path string
}

// rawMetadataFile is the JSON shape of a meta file.
type rawMetadataFile struct {
	ClassName              string                 `json:"className,omitempty"`
	Properties             map[string]interface{} `json:"properties,omitempty"`
	IgnoreUnknownInstances *bool                  `json:"ignoreUnknownInstances,omitempty"`
}

// MetadataFileFromSlice parses a meta file. Comments and trailing commas
// are tolerated.
func MetadataFileFromSlice(contents []byte, path string) (*MetadataFile, error) {
	standardized, err := hujson.Standardize(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed meta file %s", path)
	}
	var raw rawMetadataFile
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return nil, errors.Wrapf(err, "malformed meta file %s", path)
	}

	properties := make(instance.Properties, len(raw.Properties))
	for name, value := range raw.Properties {
		typed, err := instance.ValueFromJSON(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid property %s in meta file %s", name, path)
		}
		properties[name] = typed
	}

	return &MetadataFile{
		ClassName:              raw.ClassName,
		Properties:             properties,
		IgnoreUnknownInstances: raw.IgnoreUnknownInstances,
		Path:                   path,
	}, nil
}

// Apply overlays the meta file onto a snapshot, overriding the class and
// merging properties.
func (m *MetadataFile) Apply(snap *snapshot.InstanceSnapshot) error {
	if m.ClassName != "" {
		snap.ClassName = m.ClassName
	}
	for name, value := range m.Properties {
		snap.Properties[name] = value
	}
	if m.IgnoreUnknownInstances != nil {
		snap.Metadata.IgnoreUnknownInstances = *m.IgnoreUnknownInstances
	}
	return nil
}

// Serialize emits the canonical JSON form of the meta file. Properties are
// emitted in sorted name order.
func (m *MetadataFile) Serialize() ([]byte, error) {
	raw := rawMetadataFile{
		ClassName:              m.ClassName,
		IgnoreUnknownInstances: m.IgnoreUnknownInstances,
	}
	if len(m.Properties) > 0 {
		raw.Properties = make(map[string]interface{}, len(m.Properties))
		for name, value := range m.Properties {
			raw.Properties[name] = instance.ValueToJSON(value)
		}
	}
	serialized, err := json.MarshalIndent(&raw, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to serialize meta file")
	}
	return append(serialized, '\n'), nil
}

// IsEmpty returns true if the meta file carries no overrides.
func (m *MetadataFile) IsEmpty() bool {
	return m.ClassName == "" && len(m.Properties) == 0 && m.IgnoreUnknownInstances == nil
}

// reconcileMetaFile computes the meta file contents needed to describe an
// instance's deviations from a base class. It returns nil when no meta file
// is needed, which callers translate into the file's absence.
func reconcileMetaFile(v vfs.Vfs, path string, inst *instance.Instance, skip map[string]bool, baseClass string, saveFilters snapshot.PropertyFilters) ([]byte, error) {
	meta := &MetadataFile{Properties: make(instance.Properties), Path: path}
	if baseClass != "" && inst.Class != baseClass {
		meta.ClassName = inst.Class
	}

	names := make([]string, 0, len(inst.Properties))
	for name := range inst.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if skip[name] || saveFilters.Ignores(name) {
			continue
		}
		meta.Properties[name] = inst.Properties[name]
	}

	if meta.IsEmpty() {
		return nil, nil
	}
	return meta.Serialize()
}
