// Package config loads optional project-level configuration that shapes
// snapshotting and syncback: ignore globs and property filter overrides.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Crown-Wars/rojo/pkg/snapshot"
)

// Configuration is the YAML shape of a rojo.yml file.
type Configuration struct {
	// Snapshot configures forward snapshotting.
	Snapshot struct {
		// IgnorePaths are glob patterns excluded from snapshotting.
		IgnorePaths []string `yaml:"ignorePaths"`
	} `yaml:"snapshot"`
	// Syncback configures reverse synchronization.
	Syncback struct {
		// IgnorePaths are glob patterns that syncback must not touch.
		IgnorePaths []string `yaml:"ignorePaths"`
		// IgnorePropertiesDiff are additional properties ignored during
		// diff equality.
		IgnorePropertiesDiff []string `yaml:"ignorePropertiesDiff"`
		// IgnorePropertiesSave are additional properties stripped prior to
		// serialization.
		IgnorePropertiesSave []string `yaml:"ignorePropertiesSave"`
	} `yaml:"syncback"`
}

// Load reads a configuration file. A missing file yields an empty
// configuration.
func Load(path string) (*Configuration, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Configuration{}, nil
		}
		return nil, errors.Wrapf(err, "unable to read configuration file %s", path)
	}
	configuration := &Configuration{}
	if err := yaml.Unmarshal(contents, configuration); err != nil {
		return nil, errors.Wrapf(err, "unable to parse configuration file %s", path)
	}
	return configuration, nil
}

// InstanceContext converts the configuration into an instance context
// rooted at the specified base path.
func (c *Configuration) InstanceContext(base string) (*snapshot.InstanceContext, error) {
	context := snapshot.NewInstanceContext()
	for _, pattern := range c.Snapshot.IgnorePaths {
		rule, err := snapshot.NewPathIgnoreRule(pattern, base)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ignore pattern %q", pattern)
		}
		context.PathIgnoreRules = append(context.PathIgnoreRules, rule)
	}
	context.Syncback.IgnorePaths = append(context.Syncback.IgnorePaths, c.Syncback.IgnorePaths...)
	for _, name := range c.Syncback.IgnorePropertiesDiff {
		context.Syncback.PropertyFiltersDiff[name] = snapshot.FilterIgnore
	}
	for _, name := range c.Syncback.IgnorePropertiesSave {
		context.Syncback.PropertyFiltersSave[name] = snapshot.FilterIgnore
	}
	return context, nil
}
