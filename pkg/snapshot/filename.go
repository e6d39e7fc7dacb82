package snapshot

import (
	pathpkg "path"
	"unicode"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// invalidWindowsNames are file names that are not valid on Windows.
var invalidWindowsNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// forbiddenChars are characters that are outright forbidden in file names.
const forbiddenChars = `<>:"/|?*\`

// IsValidFileName returns whether a given name is a valid file name,
// accounting for rules on Windows, macOS, and Linux. In practice these
// broadly overlap; the only unexpected behavior is the Windows reserved
// name list.
func IsValidFileName(name string) bool {
	if name == "" {
		return false
	}

	if name[len(name)-1] == ' ' || name[len(name)-1] == '.' {
		return false
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
		for _, forbidden := range forbiddenChars {
			if r == forbidden {
				return false
			}
		}
	}

	for _, forbidden := range invalidWindowsNames {
		if name == forbidden {
			return false
		}
	}

	return true
}

// FileName computes the file name for an instance name and a middleware
// extension, validating legality on common operating systems.
func FileName(name, extension string) (string, error) {
	if !IsValidFileName(name) {
		return "", errors.Errorf("name %q is not legal to write to the file system", name)
	}
	if extension == "" {
		return name, nil
	}
	return name + "." + extension, nil
}

// NameForInstance computes the on-disk name to use for an instance. When
// old metadata with a filesystem source is available, its existing base
// name is preserved; otherwise a fresh name is computed from the instance
// name and the middleware's path rules by the caller.
func NameForInstance(newInst *instance.Instance, oldMetadata *InstanceMetadata) (string, error) {
	if oldMetadata != nil {
		source := oldMetadata.InstigatingSource
		if source == nil {
			return "", errors.New("members of old trees should have an instigating source")
		}
		return pathpkg.Base(source.Path()), nil
	}
	if !IsValidFileName(newInst.Name) {
		return "", errors.Errorf("name %q is not legal to write to the file system", newInst.Name)
	}
	return newInst.Name, nil
}
