package registry

import (
	"net/url"
	"path/filepath"
	"strings"
)

// urlDisplayName names a URL item before its page title is known: the host,
// followed by the path unless it is empty or "/".
func urlDisplayName(u *url.URL) string {
	if u.Path != "" && u.Path != "/" {
		return u.Host + u.Path
	}
	return u.Host
}

// parseURL accepts absolute http and https URLs only.
func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// cleanFileName strips any directory part from a client supplied name.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return ""
	}
	return base
}

// safeID reports whether id can be used as a single path element.
func safeID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
