package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

// Load reads the snapshot stored at path. A missing file yields the
// placeholder without error. An unreadable or undecodable file yields the
// placeholder together with the error, so callers can log it and carry on.
func Load(path string) (menu.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Placeholder(), nil
	}
	if err != nil {
		return Placeholder(), errors.Wrapf(err, "failed to read snapshot %s", path)
	}
	snap, err := ParseSnapshot(data)
	if err != nil {
		return snap, errors.Wrapf(err, "snapshot %s", path)
	}
	return snap, nil
}

// Encode renders snap as indented JSON. Empty menus and tips are written as
// arrays, never null.
func Encode(snap menu.Snapshot) ([]byte, error) {
	snap.Tips = cloneTips(snap.Tips)
	for _, venue := range menu.Venues {
		rec := snap.Venue(venue)
		rec.Menu = cloneLines(rec.Menu)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode snapshot")
	}
	return append(data, '\n'), nil
}

// Save writes snap to path through a temporary file in the same directory,
// so readers never see a partial document.
func Save(path string, snap menu.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close snapshot")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "failed to set snapshot permissions")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// TracePath is the file WriteTrace writes for venue.
func TracePath(dir, venue string) string {
	return filepath.Join(dir, "trace-"+venue+".txt")
}

// WriteTrace stores the extraction trace of one venue for debugging.
func WriteTrace(dir, venue, trace string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create debug directory %s", dir)
	}
	if err := os.WriteFile(TracePath(dir, venue), []byte(trace+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write trace for %s", venue)
	}
	return nil
}
