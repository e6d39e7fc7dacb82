package middleware

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	pathpkg "path"
	"sort"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
	"github.com/Crown-Wars/rojo/pkg/snapshot"
	"github.com/Crown-Wars/rojo/pkg/vfs"
)

// localizationEntry is one row of a localization table.
type localizationEntry struct {
	Key     string            `json:"key,omitempty"`
	Context string            `json:"context,omitempty"`
	Example string            `json:"example,omitempty"`
	Source  string            `json:"source,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

// csvMiddleware maps CSV files to LocalizationTable instances whose
// Contents property carries the table as JSON.
type csvMiddleware struct{}

// ID implements snapshot.Middleware.ID.
func (m *csvMiddleware) ID() string {
	return "csv"
}

// MatchOnlyDirectories implements snapshot.Middleware.MatchOnlyDirectories.
func (m *csvMiddleware) MatchOnlyDirectories() bool {
	return false
}

// DefaultGlobs implements snapshot.Middleware.DefaultGlobs.
func (m *csvMiddleware) DefaultGlobs() []string {
	return []string{"**/*.csv"}
}

// InitNames implements snapshot.Middleware.InitNames.
func (m *csvMiddleware) InitNames() []string {
	return nil
}

// Snapshot implements snapshot.Middleware.Snapshot. The Key, Context,
// Example, and Source columns are fixed; every other column is a locale.
func (m *csvMiddleware) Snapshot(context *snapshot.InstanceContext, v vfs.Vfs, path string) (*snapshot.InstanceSnapshot, error) {
	contents, err := v.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	records, err := csv.NewReader(bytes.NewReader(contents)).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "malformed csv file: %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("csv file has no header: %s", path)
	}

	header := records[0]
	entries := make([]localizationEntry, 0, len(records)-1)
	for _, record := range records[1:] {
		entry := localizationEntry{Values: make(map[string]string)}
		for column, value := range record {
			if column >= len(header) {
				break
			}
			switch header[column] {
			case "Key":
				entry.Key = value
			case "Context":
				entry.Context = value
			case "Example":
				entry.Example = value
			case "Source":
				entry.Source = value
			default:
				entry.Values[header[column]] = value
			}
		}
		entries = append(entries, entry)
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode localization contents")
	}

	snap := snapshot.NewInstanceSnapshot()
	snap.ClassName = "LocalizationTable"
	snap.Name = stem(path, "csv")
	snap.Properties["Contents"] = instance.String(encoded)
	snap.Metadata = leafMetadata(context, m.ID(), path, "csv", contents)
	if err := applyAdjacentMeta(v, path, "csv", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SyncbackSerializesChildren implements
// snapshot.Middleware.SyncbackSerializesChildren.
func (m *csvMiddleware) SyncbackSerializesChildren() bool {
	return false
}

// SyncbackPriority implements snapshot.Middleware.SyncbackPriority.
func (m *csvMiddleware) SyncbackPriority(dom *instance.Dom, inst *instance.Instance, considerDescendants bool) (int, bool) {
	if inst.Class != "LocalizationTable" {
		return 0, false
	}
	return snapshot.PrioritySingleReadable, true
}

// SyncbackNewPath implements snapshot.Middleware.SyncbackNewPath.
func (m *csvMiddleware) SyncbackNewPath(parentPath, name string, inst *instance.Instance) (string, error) {
	fileName, err := snapshot.FileName(name, "csv")
	if err != nil {
		return "", err
	}
	return pathpkg.Join(parentPath, fileName), nil
}

// Syncback implements snapshot.Middleware.Syncback.
func (m *csvMiddleware) Syncback(ctx *snapshot.SyncbackContext) (*snapshot.SyncbackNode, error) {
	return syncbackLeaf(ctx, m.ID(), "csv", "LocalizationTable", "Contents", serializeLocalizationTable)
}

// serializeLocalizationTable renders a LocalizationTable instance back into
// deterministic CSV: fixed columns first, then locales in sorted order,
// with rows in input order.
func serializeLocalizationTable(inst *instance.Instance) ([]byte, error) {
	contents, ok := inst.Properties["Contents"].(instance.String)
	if !ok {
		return nil, errors.Errorf("localization table %s has no Contents property", inst.Name)
	}

	var entries []localizationEntry
	if err := json.Unmarshal([]byte(contents), &entries); err != nil {
		return nil, errors.Wrapf(err, "malformed localization contents for %s", inst.Name)
	}

	localeSet := make(map[string]bool)
	for _, entry := range entries {
		for locale := range entry.Values {
			localeSet[locale] = true
		}
	}
	locales := make([]string, 0, len(localeSet))
	for locale := range localeSet {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	header := append([]string{"Key", "Source", "Context", "Example"}, locales...)
	records := [][]string{header}
	for _, entry := range entries {
		record := []string{entry.Key, entry.Source, entry.Context, entry.Example}
		for _, locale := range locales {
			record = append(record, entry.Values[locale])
		}
		records = append(records, record)
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.WriteAll(records); err != nil {
		return nil, errors.Wrap(err, "unable to write csv")
	}
	writer.Flush()
	return buffer.Bytes(), nil
}
