package resource

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// FilePrefix tags a path on the local filesystem
	FilePrefix = "file:"
	// ClasspathPrefix tags a path inside the packaged resource layers
	ClasspathPrefix = "classpath:"
)

// ErrNotFound is returned when no origin can provide the requested path
var ErrNotFound = errors.New("resource not found")

//go:embed packaged
var packagedFS embed.FS

// Locator opens origin-tagged paths
type Locator interface {
	Open(path string) (io.ReadCloser, error)
}

// FSLocator resolves file: paths against a working directory and classpath:
// paths against an ordered list of fs.FS layers.
type FSLocator struct {
	workingDir string
	classpath  []fs.FS
	defaults   bool
}

type Option func(*FSLocator)

// WithWorkingDir sets the directory relative file: paths are resolved against
func WithWorkingDir(dir string) Option {
	return func(l *FSLocator) {
		l.workingDir = dir
	}
}

// WithClasspath adds layers searched before the embedded defaults
func WithClasspath(layers ...fs.FS) Option {
	return func(l *FSLocator) {
		l.classpath = append(l.classpath, layers...)
	}
}

// WithClasspathDirs adds filesystem directories as classpath layers
func WithClasspathDirs(dirs ...string) Option {
	return func(l *FSLocator) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			l.classpath = append(l.classpath, os.DirFS(dir))
		}
	}
}

// WithoutDefaults drops the embedded packaged layer
func WithoutDefaults() Option {
	return func(l *FSLocator) {
		l.defaults = false
	}
}

func NewLocator(opts ...Option) *FSLocator {
	l := &FSLocator{
		defaults: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.defaults {
		l.classpath = append(l.classpath, Packaged())
	}
	return l
}

// Packaged returns the resources embedded in the binary
func Packaged() fs.FS {
	sub, err := fs.Sub(packagedFS, "packaged")
	if err != nil {
		panic(fmt.Sprintf("resource: packaged layer: %v", err))
	}
	return sub
}

func (l *FSLocator) Open(p string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(p, ClasspathPrefix):
		return l.openClasspath(strings.TrimPrefix(p, ClasspathPrefix))
	case strings.HasPrefix(p, FilePrefix):
		return l.openFile(strings.TrimPrefix(p, FilePrefix))
	default:
		return l.openFile(p)
	}
}

func (l *FSLocator) openClasspath(name string) (io.ReadCloser, error) {
	name = path.Clean(strings.TrimLeft(filepath.ToSlash(name), "/"))
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, ClasspathPrefix, name)
	}

	for _, layer := range l.classpath {
		f, err := layer.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("opening %s%s: %w", ClasspathPrefix, name, err)
		}
		if info, err := f.Stat(); err == nil && info.IsDir() {
			_ = f.Close()
			continue
		}
		return f, nil
	}

	return nil, fmt.Errorf("%w: %s%s", ErrNotFound, ClasspathPrefix, name)
}

func (l *FSLocator) openFile(name string) (io.ReadCloser, error) {
	if !filepath.IsAbs(name) && l.workingDir != "" {
		name = filepath.Join(l.workingDir, name)
	}

	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s%s", ErrNotFound, FilePrefix, name)
		}
		return nil, fmt.Errorf("opening %s%s: %w", FilePrefix, name, err)
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s%s is a directory", ErrNotFound, FilePrefix, name)
	}

	return f, nil
}

// ReadString opens p through loc and returns its full contents
func ReadString(loc Locator, p string) (string, error) {
	rc, err := loc.Open(p)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	return string(data), nil
}

// HasOrigin reports whether p carries an explicit origin tag
func HasOrigin(p string) bool {
	return strings.HasPrefix(p, FilePrefix) || strings.HasPrefix(p, ClasspathPrefix)
}
