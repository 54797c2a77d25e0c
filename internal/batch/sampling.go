package batch

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path/filepath"
	"sort"

	"github.com/himanishpuri/dolphain/internal/audio"
	"github.com/himanishpuri/dolphain/pkg/utils"
)

// DefaultSeed makes runs reproducible unless a seed is given.
const DefaultSeed uint64 = 42

// SampleFiles picks n files with a seeded PCG permutation and returns them
// in their original list order. n <= 0 or n >= len(files) keeps every file.
func SampleFiles(files []string, n int, seed uint64) []string {
	if n <= 0 || n >= len(files) {
		out := make([]string, len(files))
		copy(out, files)
		return out
	}

	r := rand.New(rand.NewPCG(seed, seed))
	idx := r.Perm(len(files))[:n]
	sort.Ints(idx)

	out := make([]string, n)
	for i, j := range idx {
		out[i] = files[j]
	}
	return out
}

// ReadFileList reads one path per line, skipping blanks and '#' comments.
func ReadFileList(path string) ([]string, error) {
	files, err := utils.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading file list: %w", err)
	}
	return files, nil
}

// FindDataFiles walks dir for EARS recordings (three-digit extensions),
// returned in lexical order.
func FindDataFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audio.IsEARSPath(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
