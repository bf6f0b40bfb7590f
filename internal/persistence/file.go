package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt marks a state file that exists but cannot be parsed.
var ErrCorrupt = errors.New("corrupt state file")

// writeJSONFile atomically replaces path with the JSON encoding of v. The data
// goes to a temporary sibling first, is fsynced, then renamed into place.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", filepath.Base(path), err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// readJSONFile decodes path into v. It returns false with no error when the
// file does not exist. A file that fails to parse is moved aside so the next
// write does not destroy it, and ErrCorrupt is returned.
func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UTC().Unix())
		_ = os.Rename(path, quarantine)
		return false, fmt.Errorf("%w: %s moved to %s: %v", ErrCorrupt, filepath.Base(path), filepath.Base(quarantine), err)
	}
	return true, nil
}

// preserveCopy copies path to a .corrupt-<unix> sibling and leaves the
// original in place.
func preserveCopy(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	copyPath := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UTC().Unix())
	if err := os.WriteFile(copyPath, data, 0o600); err != nil {
		return "", fmt.Errorf("preserving %s: %w", filepath.Base(path), err)
	}
	return copyPath, nil
}
