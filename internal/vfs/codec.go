// Package vfs implements the virtual filesystem layered on top of message
// captions: encoding a path into a caption, decoding it back, and
// reconstructing directory listings from a page of message history.
package vfs

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultPrefix marks a caption as belonging to the file store.
	DefaultPrefix = "filestore4u_"
	// DefaultPlaceholder is the name of the zero-byte marker entry that
	// represents a directory.
	DefaultPlaceholder = ".placeholder"
)

// ErrInvalidPath is returned when a path cannot be encoded into a caption.
var ErrInvalidPath = errors.New("invalid virtual path")

// Path is an absolute, slash-separated virtual path such as "/docs/report.pdf".
type Path string

// Kind distinguishes files from directories.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "folder"
	}
	return "file"
}

// Decoded is the result of decoding a caption.
type Decoded struct {
	Path Path
	Kind Kind
}

// Codec converts between virtual paths and captions.
type Codec struct {
	Prefix      string
	Placeholder string
}

// DefaultCodec is the codec used for every caption written by this service.
var DefaultCodec = Codec{Prefix: DefaultPrefix, Placeholder: DefaultPlaceholder}

// Encode returns the caption for p. Directories get the placeholder segment
// appended.
func (c Codec) Encode(p Path, kind Kind) (string, error) {
	if err := c.Validate(p); err != nil {
		return "", err
	}
	if kind == KindDirectory {
		return c.Prefix + string(p) + "/" + c.Placeholder, nil
	}
	return c.Prefix + string(p), nil
}

// Decode parses a caption. It reports false for foreign captions.
// The producer is trusted: ".." and repeated separators are kept as-is.
func (c Codec) Decode(caption string) (Decoded, bool) {
	rest, ok := strings.CutPrefix(caption, c.Prefix)
	if !ok {
		return Decoded{}, false
	}
	kind := KindFile
	if dir, ok := strings.CutSuffix(rest, "/"+c.Placeholder); ok {
		rest = dir
		kind = KindDirectory
	}
	if rest == "" || rest[0] != '/' {
		return Decoded{}, false
	}
	return Decoded{Path: Path(rest), Kind: kind}, true
}

// Validate checks that p can be encoded unambiguously.
func (c Codec) Validate(p Path) error {
	s := string(p)
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, s)
	}
	if s == "/" {
		return fmt.Errorf("%w: root cannot be stored", ErrInvalidPath)
	}
	for _, seg := range strings.Split(s[1:], "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, s)
		case ".", "..":
			return fmt.Errorf("%w: %q has a relative segment", ErrInvalidPath, s)
		case c.Placeholder:
			return fmt.Errorf("%w: %q uses the reserved name %q", ErrInvalidPath, s, c.Placeholder)
		}
	}
	return nil
}

// JoinPath appends a single-segment name to dir.
func (c Codec) JoinPath(dir Path, name string) (Path, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: bad name %q", ErrInvalidPath, name)
	}
	d := CleanDir(dir)
	var p Path
	if d == "/" {
		p = Path("/" + name)
	} else {
		p = Path(string(d) + "/" + name)
	}
	if err := c.Validate(p); err != nil {
		return "", err
	}
	return p, nil
}

// CleanDir returns dir as an absolute path without a trailing slash.
// An empty dir is the root.
func CleanDir(dir Path) Path {
	s := string(dir)
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if len(s) > 1 {
		s = strings.TrimRight(s, "/")
		if s == "" {
			return "/"
		}
	}
	return Path(s)
}
