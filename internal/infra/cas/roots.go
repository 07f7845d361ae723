package cas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vaultmesh/internal/domain"
)

// PutRoot persists a daily root next to the documents it seals, named by
// date. Publication is atomic like Put; sealing is deterministic over an
// unchanged leaf set, so concurrent reseals converge on identical bytes.
func (s *Store) PutRoot(root domain.DailyRoot) error {
	if root.Date == "" {
		return fmt.Errorf("%w: daily root requires a date", domain.ErrSchema)
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding daily root: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".root-"+root.Date+".tmp-*")
	if err != nil {
		return fmt.Errorf("staging root write: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing daily root: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing daily root: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.rootPath(root.Date)); err != nil {
		return fmt.Errorf("publishing daily root: %w", err)
	}
	return nil
}

// GetRoot loads the sealed root for a date, or ErrNotFound.
func (s *Store) GetRoot(date string) (domain.DailyRoot, error) {
	data, err := os.ReadFile(s.rootPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DailyRoot{}, fmt.Errorf("%w: root for %s", domain.ErrNotFound, date)
		}
		return domain.DailyRoot{}, fmt.Errorf("reading daily root: %w", err)
	}
	var root domain.DailyRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return domain.DailyRoot{}, fmt.Errorf("%w: malformed root file for %s", domain.ErrSchema, date)
	}
	return root, nil
}

func (s *Store) rootPath(date string) string {
	return filepath.Join(s.dir, "root-"+date+".json")
}
