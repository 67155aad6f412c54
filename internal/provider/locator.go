package provider

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Locator is an opaque, persistable handle to an external document.
//
// Accepted forms:
//
//	/abs/path/to/file.db          local or cloud-synced file
//	file:///abs/path/to/file.db   same, URI form
//	s3://bucket/key               S3 object
//	https://host/path             HTTP resource supporting GET/PUT/HEAD
type Locator string

// Scheme returns the URI scheme of the locator; bare paths are "file".
func (l Locator) Scheme() string {
	s := string(l)
	if i := strings.Index(s, "://"); i > 0 {
		return strings.ToLower(s[:i])
	}
	return "file"
}

func (l Locator) String() string {
	return string(l)
}

// ParseLocator validates s and returns it in canonical form. Bare paths must
// be absolute and are cleaned.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty locator")
	}

	loc := Locator(s)
	switch loc.Scheme() {
	case "file":
		p, err := loc.FilePath()
		if err != nil {
			return "", err
		}
		return Locator(p), nil
	case "s3":
		bucket, key, err := loc.S3Object()
		if err != nil {
			return "", err
		}
		return Locator("s3://" + bucket + "/" + key), nil
	case "http", "https":
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid http locator %q", s)
		}
		return loc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme())
	}
}

// FilePath returns the absolute filesystem path of a file locator.
func (l Locator) FilePath() (string, error) {
	s := string(l)
	if strings.HasPrefix(strings.ToLower(s), "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("invalid file locator %q: %w", s, err)
		}
		s = u.Path
	}
	if !filepath.IsAbs(s) {
		return "", fmt.Errorf("file locator must be absolute: %q", string(l))
	}
	return filepath.Clean(s), nil
}

// S3Object splits an s3:// locator into bucket and key.
func (l Locator) S3Object() (bucket, key string, err error) {
	s := string(l)
	const prefix = "s3://"
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", "", fmt.Errorf("not an s3 locator: %q", s)
	}
	rest := s[len(prefix):]
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 locator needs bucket and key: %q", string(l))
	}
	return bucket, key, nil
}
