package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/hardcopy/pkg/fnmatch"
)

// Entry is one source entry that a copy must reproduce.
type Entry struct {
	Path    string // Absolute path, symlinks not resolved
	RelPath string // Slash-separated path relative to root
	IsDir   bool
	Size    int64       // Size of the file, or of the symlink target
	Mode    os.FileMode // Mode of the entry after following symlinks
	Symlink bool
}

// Options controls which entries a Walker reports.
type Options struct {
	// ExcludeFiles are base-name wildcards for files (robocopy /XF).
	ExcludeFiles []string
	// ExcludeDirs are base-name wildcards for directories (robocopy /XD).
	ExcludeDirs []string
	// Ignore are doublestar patterns over slash-separated relative paths.
	// A pattern ending in "/" only applies to directories.
	Ignore []string
	Logger *zerolog.Logger
}

// Walker walks a local tree with exclude pattern support
type Walker struct {
	root   string
	files  []*fnmatch.Pattern
	dirs   []*fnmatch.Pattern
	ignore []string
	log    zerolog.Logger
}

// NewWalker creates a new walker rooted at root, which must be a directory.
func NewWalker(root string, opts Options) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	files, err := fnmatch.CompileAll(opts.ExcludeFiles, true)
	if err != nil {
		return nil, fmt.Errorf("exclude files: %w", err)
	}
	dirs, err := fnmatch.CompileAll(opts.ExcludeDirs, true)
	if err != nil {
		return nil, fmt.Errorf("exclude dirs: %w", err)
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return nil, fmt.Errorf("invalid ignore pattern: %q", pattern)
		}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Walker{
		root:   absRoot,
		files:  files,
		dirs:   dirs,
		ignore: opts.Ignore,
		log:    logger.With().Str("root", absRoot).Logger(),
	}, nil
}

// Root returns the absolute root of the walk.
func (w *Walker) Root() string {
	return w.root
}

// Walk calls fn for every entry under the root in lexical order. The root
// itself is not reported. Symlinks are followed: a symlink to a directory is
// reported as a directory but not descended. Dangling symlinks and special
// files are skipped. Errors returned by fn stop the walk and are returned
// unchanged.
func (w *Walker) Walk(ctx context.Context, fn func(Entry) error) error {
	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", p, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			if w.isExcludedDir(rel) {
				w.log.Debug().Str("path", rel).Msg("Excluded directory")
				return filepath.SkipDir
			}
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("get file info: %w", err)
			}
			return fn(Entry{Path: p, RelPath: rel, IsDir: true, Mode: info.Mode()})

		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(p)
			if err != nil {
				w.log.Debug().Str("path", rel).Err(err).Msg("Skipping dangling symlink")
				return nil
			}
			return w.visit(p, rel, info, true, fn)

		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("get file info: %w", err)
			}
			return w.visit(p, rel, info, false, fn)

		default:
			w.log.Debug().Str("path", rel).Str("mode", d.Type().String()).Msg("Skipping special file")
			return nil
		}
	})
}

// visit reports a file or a followed symlink.
func (w *Walker) visit(p, rel string, info os.FileInfo, symlink bool, fn func(Entry) error) error {
	switch {
	case info.IsDir():
		if w.isExcludedDir(rel) {
			return nil
		}
		return fn(Entry{Path: p, RelPath: rel, IsDir: true, Mode: info.Mode(), Symlink: symlink})
	case info.Mode().IsRegular():
		if w.isExcludedFile(rel) {
			w.log.Debug().Str("path", rel).Msg("Excluded file")
			return nil
		}
		return fn(Entry{Path: p, RelPath: rel, Size: info.Size(), Mode: info.Mode(), Symlink: symlink})
	default:
		w.log.Debug().Str("path", rel).Str("mode", info.Mode().String()).Msg("Skipping special file")
		return nil
	}
}

func (w *Walker) isExcludedDir(rel string) bool {
	return fnmatch.MatchAny(w.dirs, path.Base(rel)) || w.isIgnored(rel, true)
}

func (w *Walker) isExcludedFile(rel string) bool {
	return fnmatch.MatchAny(w.files, path.Base(rel)) || w.isIgnored(rel, false)
}

// isIgnored checks if a path matches any ignore pattern
func (w *Walker) isIgnored(rel string, isDir bool) bool {
	for _, pattern := range w.ignore {
		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// JoinKey converts a relative path to an object key under prefix
func JoinKey(prefix, relPath string) string {
	key := filepath.ToSlash(relPath)

	if prefix == "" {
		return key
	}

	// Ensure prefix ends with /
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return prefix + key
}
