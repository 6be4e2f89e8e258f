package assets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/teslashibe/go-facefx/internal/httpc"
)

// BuiltinScheme prefixes assets generated in-process, e.g. "builtin:glasses".
const BuiltinScheme = "builtin:"

// ReadURI returns the raw bytes behind uri. http(s) URIs are fetched with
// the shared client; file URIs and bare paths are read from disk.
func ReadURI(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, BuiltinScheme) {
		return nil, fmt.Errorf("%w: %s has no byte form", ErrUnsupportedFormat, uri)
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare path, including Windows drive letters
		return os.ReadFile(uri)
	}

	switch u.Scheme {
	case "http", "https":
		return httpc.Fetch(ctx, uri)
	case "file":
		return os.ReadFile(u.Path)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedFormat, u.Scheme)
	}
}

func builtinName(uri string) (string, bool) {
	if !strings.HasPrefix(uri, BuiltinScheme) {
		return "", false
	}
	return strings.TrimPrefix(uri, BuiltinScheme), true
}
