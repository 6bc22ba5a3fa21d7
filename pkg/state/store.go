// Package state persists availability snapshots between runs.
//
// Each tracked region owns one JSON file in the state directory
// (<region>.json), and the global region list lives in regions.json. Files
// carry a schema version and a last-updated timestamp beside the per-type
// availability maps, and are replaced atomically on every save. A missing or
// unparseable file resets the baseline for that entity; a schema version the
// binary does not support is a fatal condition that requires the operator to
// delete the file.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rodos/aws-region-watch/pkg/telemetry"
)

// SchemaVersion is the state file layout version this binary reads and
// writes. Bump it when the structure changes; older files are then rejected
// rather than silently reinterpreted.
const SchemaVersion = 1

// globalFileName holds the global region list, which is not tied to any
// single tracked region.
const globalFileName = "regions.json"

// ErrSchemaVersion is returned (wrapped) when a state file's schema version
// does not match SchemaVersion.
var ErrSchemaVersion = errors.New("unsupported state schema version")

// ErrInvalidRegionName is returned (wrapped) when a region identifier fails
// validation before touching the filesystem.
var ErrInvalidRegionName = errors.New("invalid region name")

// Snapshot is the persisted state for one region (or the global region
// list): availability maps keyed by resource type, plus bookkeeping fields.
type Snapshot struct {
	// SchemaVersion is the layout version the snapshot was written with.
	SchemaVersion int

	// LastUpdated is the RFC 3339 timestamp of the last save.
	LastUpdated string

	// Resources maps resource type ("region", "product", "api") to the
	// availability map recorded for it.
	Resources map[string]map[string]string
}

// NewSnapshot returns an empty snapshot ready to record resources.
func NewSnapshot() *Snapshot {
	return &Snapshot{Resources: make(map[string]map[string]string)}
}

// Get returns the recorded availability map for a resource type. A nil or
// empty result means no baseline exists for that type yet.
func (s *Snapshot) Get(resourceType string) map[string]string {
	return s.Resources[resourceType]
}

// Set replaces the recorded availability map for a resource type.
func (s *Snapshot) Set(resourceType string, resources map[string]string) {
	if s.Resources == nil {
		s.Resources = make(map[string]map[string]string)
	}
	s.Resources[resourceType] = resources
}

// MarshalJSON flattens the snapshot into the on-disk layout: reserved
// _schema_version and _last_updated keys beside the per-type maps.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(s.Resources)+2)
	doc["_schema_version"] = s.SchemaVersion
	doc["_last_updated"] = s.LastUpdated
	for resourceType, resources := range s.Resources {
		doc[resourceType] = resources
	}
	return json.Marshal(doc)
}

// UnmarshalJSON parses the flat on-disk layout back into a snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	s.SchemaVersion = 0
	s.LastUpdated = ""
	s.Resources = make(map[string]map[string]string)

	for key, raw := range doc {
		switch key {
		case "_schema_version":
			if err := json.Unmarshal(raw, &s.SchemaVersion); err != nil {
				return fmt.Errorf("invalid _schema_version: %w", err)
			}
		case "_last_updated":
			if err := json.Unmarshal(raw, &s.LastUpdated); err != nil {
				return fmt.Errorf("invalid _last_updated: %w", err)
			}
		default:
			var resources map[string]string
			if err := json.Unmarshal(raw, &resources); err != nil {
				return fmt.Errorf("invalid resource map %q: %w", key, err)
			}
			s.Resources[key] = resources
		}
	}
	return nil
}

// Store reads and writes snapshots in a single state directory.
type Store struct {
	dir string
	log *telemetry.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// the first save.
func NewStore(dir string, logger *telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	return &Store{
		dir: dir,
		log: logger,
		now: time.Now,
	}
}

// ValidateRegionName rejects region identifiers that could escape the state
// directory. The identifier must be a single path segment with no traversal
// sequences; validation happens before any filesystem access.
func ValidateRegionName(region string) error {
	if strings.Contains(region, "..") || strings.ContainsAny(region, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRegionName, region)
	}
	if filepath.Base(region) != region {
		return fmt.Errorf("%w: %q", ErrInvalidRegionName, region)
	}
	return nil
}

// FilePath returns the on-disk path for a region's state file.
func (s *Store) FilePath(region string) (string, error) {
	if err := ValidateRegionName(region); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, region+".json"), nil
}

// GlobalFilePath returns the on-disk path for the global region list.
func (s *Store) GlobalFilePath() string {
	return filepath.Join(s.dir, globalFileName)
}

// Load returns the last saved snapshot for a region. A missing file yields
// an empty snapshot and no error (first run). An unparseable file is logged
// as a warning and also yields an empty snapshot; only a schema version
// mismatch is an error.
func (s *Store) Load(region string) (*Snapshot, error) {
	path, err := s.FilePath(region)
	if err != nil {
		return nil, err
	}
	return s.load(path)
}

// LoadGlobal returns the last saved global region snapshot.
func (s *Store) LoadGlobal() (*Snapshot, error) {
	return s.load(s.GlobalFilePath())
}

func (s *Store) load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Debugf("no existing state file at %s", path)
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	snapshot := NewSnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		// Corruption resets the baseline for this entity; it never aborts
		// the run.
		s.log.WithError(err).Warnf("corrupted state file %s, starting fresh", path)
		return NewSnapshot(), nil
	}

	if snapshot.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf(
			"%w: state file %s has schema version %d, but this version only supports %d; delete the file to start fresh",
			ErrSchemaVersion, path, snapshot.SchemaVersion, SchemaVersion)
	}

	s.log.Debugf("loaded state from %s", path)
	return snapshot, nil
}

// Save writes a region's snapshot, stamping the schema version and the
// current timestamp.
func (s *Store) Save(region string, snapshot *Snapshot) error {
	path, err := s.FilePath(region)
	if err != nil {
		return err
	}
	return s.save(path, snapshot)
}

// SaveGlobal writes the global region snapshot.
func (s *Store) SaveGlobal(snapshot *Snapshot) error {
	return s.save(s.GlobalFilePath(), snapshot)
}

// save writes the snapshot to a temporary sibling file and atomically
// renames it over the target, so the target is never left partially written.
func (s *Store) save(path string, snapshot *Snapshot) error {
	snapshot.SchemaVersion = SchemaVersion
	snapshot.LastUpdated = s.now().Format(time.RFC3339)

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace state file %s: %w", path, err)
	}

	s.log.Debugf("state saved to %s", path)
	return nil
}
