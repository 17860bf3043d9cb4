package gamefile

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// SaveArchive writes every report as a separate YAML entry of a single
// zip archive at path. Entries are named by Report.Filename, with a
// numeric suffix on repeats.
func SaveArchive(reports []*Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	b := bufio.NewWriter(f)
	z := zip.NewWriter(b)
	seen := make(map[string]bool, len(reports))
	for _, r := range reports {
		name := r.Filename()
		base := strings.TrimSuffix(name, ".solution.yaml")
		for k := 1; seen[name]; k++ {
			name = fmt.Sprintf("%s.%d.solution.yaml", base, k)
		}
		seen[name] = true

		w, err := z.Create(name)
		if err != nil {
			return err
		}
		if err := r.Write(w); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
	}

	if err := z.Close(); err != nil {
		return err
	}
	if err := b.Flush(); err != nil {
		return err
	}
	return f.Close()
}
