// Package world holds the shared, durable status of interactable objects and
// the static data extracted from a world script.
package world

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrObjectNotFound is returned by Update when no object has the given name.
var ErrObjectNotFound = errors.New("world object not found")

// Object is one interactable entry of the world document. Fields other than
// Name and Status are carried through rewrites untouched.
type Object struct {
	Name   string
	Status string
	Extra  map[string]json.RawMessage
}

func (o Object) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(o.Extra)+2)
	for k, v := range o.Extra {
		fields[k] = v
	}
	fields["Name"] = o.Name
	fields["Status"] = o.Status
	return json.Marshal(fields)
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*o = Object{}
	if raw, ok := fields["Name"]; ok {
		if err := json.Unmarshal(raw, &o.Name); err != nil {
			return fmt.Errorf("object Name: %w", err)
		}
		delete(fields, "Name")
	}
	if raw, ok := fields["Status"]; ok {
		if err := json.Unmarshal(raw, &o.Status); err != nil {
			return fmt.Errorf("object Status: %w", err)
		}
		delete(fields, "Status")
	}
	if len(fields) > 0 {
		o.Extra = fields
	}
	return nil
}

// Document is the whole world state file: {"objects": [...]} plus any other
// top-level keys, which are preserved.
type Document struct {
	Objects []Object
	Extra   map[string]json.RawMessage
}

func (d Document) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		fields[k] = v
	}
	objects := d.Objects
	if objects == nil {
		objects = []Object{}
	}
	fields["objects"] = objects
	return json.Marshal(fields)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = Document{}
	if raw, ok := fields["objects"]; ok {
		if err := json.Unmarshal(raw, &d.Objects); err != nil {
			return fmt.Errorf("objects: %w", err)
		}
		delete(fields, "objects")
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

// Store reads and updates the world document on disk. Every successful
// Update replaces the file through a rename, so a reader sees either the old
// or the new document, never a partial one.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a store backed by the JSON document at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the whole document.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world state: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse world state: %w", err)
	}
	return &doc, nil
}

// Objects returns every object in document order.
func (s *Store) Objects(ctx context.Context) ([]Object, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Objects, nil
}

// Read returns object name to status.
func (s *Store) Read(ctx context.Context) (map[string]string, error) {
	objects, err := s.Objects(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(objects))
	for _, o := range objects {
		out[o.Name] = o.Status
	}
	return out, nil
}

// Update sets the status of the object named name. It returns
// ErrObjectNotFound, leaving the file untouched, if there is no such object.
func (s *Store) Update(ctx context.Context, name, status string) error {
	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range doc.Objects {
		if doc.Objects[i].Name == name {
			updated := doc.Objects[i]
			updated.Status = status
			doc.Objects[i] = updated
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrObjectNotFound, name)
	}

	if err := s.write(doc); err != nil {
		return err
	}
	s.logger.Debug("World object updated", "object", name, "status", status)
	return nil
}

// Init writes doc only if the store file does not exist yet.
func (s *Store) Init(doc *Document) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat world state: %w", err)
	}
	return s.write(doc)
}

func (s *Store) write(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal world state: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format world state: %w", err)
	}
	buf.WriteByte('\n')
	return WriteFileAtomic(s.path, buf.Bytes(), 0o644)
}

// WriteFileAtomic writes data to a temp file next to path, syncs it, and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	return nil
}
