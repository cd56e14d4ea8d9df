// Package source opens the data to upload: local files (glob patterns allowed), files fetched
// from a remote URL, and S3 objects. Local and remote files can be zstd compressed first.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
)

// ResolvePath expands a path that may contain a doublestar glob pattern into exactly one file.
func ResolvePath(path string, pathModifier pathutil.PathModifier, pathChecker pathutil.PathChecker) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("source path is empty")
	}

	candidate := path
	if strings.ContainsAny(path, "*?[{") {
		base, pattern := doublestar.SplitPattern(path)
		absBase, err := pathModifier.AbsPath(base) // resolves ~/ and expands any envs
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", base, err)
		}

		matches, err := doublestar.Glob(os.DirFS(absBase), pattern, doublestar.WithNoFollow(), doublestar.WithFilesOnly())
		if err != nil {
			return "", fmt.Errorf("invalid path pattern '%s': %w", path, err)
		}
		switch len(matches) {
		case 0:
			return "", fmt.Errorf("no match for path pattern: %s", path)
		case 1:
			candidate = filepath.Join(absBase, matches[0])
		default:
			return "", fmt.Errorf("path pattern %s matches %d files, expected exactly one", path, len(matches))
		}
	}

	absPath, err := pathModifier.AbsPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", candidate, err)
	}

	exists, err := pathChecker.IsPathExists(absPath)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", absPath, err)
	}
	if !exists {
		return "", fmt.Errorf("source file does not exist: %s", absPath)
	}
	return absPath, nil
}
