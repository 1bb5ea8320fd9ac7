// Package release downloads a versioned application artifact and replaces
// the installation's release-owned directories with its contents.
package release

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
)

var (
	// ErrFetch is returned when the artifact cannot be downloaded.
	ErrFetch = errors.New("artifact fetch failed")

	// ErrArchive is returned when the downloaded archive cannot be extracted.
	ErrArchive = errors.New("archive extraction failed")
)

// Fetcher retrieves a versioned release archive and replaces the
// installation's mutable source directories with its contents. Running it is
// only safe strictly after a successful backup: the fetcher has no rollback
// of its own.
type Fetcher struct {
	client   *http.Client
	settings *config.Settings
}

// NewFetcher creates a new release Fetcher
func NewFetcher(settings *config.Settings) *Fetcher {
	return &Fetcher{
		// No retries and no overall deadline: failure handling is
		// abort-and-restore, and transfer pacing is left to the server.
		client:   &http.Client{Timeout: 0},
		settings: settings,
	}
}

// Fetch deletes the release-owned subdirectories from the target, downloads
// the archive for version and extracts it over the target root.
func (f *Fetcher) Fetch(ctx context.Context, target, version string) error {
	logger := log.WithComponent("release")

	// Cleaned so the escape check in safeJoin compares against the same
	// form of the root that entries are joined under.
	target = filepath.Clean(target)

	for _, dir := range f.settings.MutableDirs {
		path := filepath.Join(target, dir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		logger.Debug().Str("dir", path).Msg("removed release-owned directory")
	}

	url := f.settings.ArtifactURLFor(version)
	logger.Info().Str("version", version).Str("url", url).Msg("downloading release artifact")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s for %s", ErrFetch, resp.Status, url)
	}

	start := time.Now()
	if err := extract(resp.Body, target); err != nil {
		return err
	}

	logger.Info().
		Str("version", version).
		Dur("took", time.Since(start)).
		Msg("release extracted over target")
	return nil
}

// extract unpacks a gzip-compressed tar stream over root. Entries expand
// into the same top-level names the fetcher just deleted.
func extract(r io.Reader, root string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArchive, err)
		}

		path, err := safeJoin(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("%w: %v", ErrArchive, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrArchive, err)
			}
			if err := writeFile(path, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("%w: %v", ErrArchive, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrArchive, err)
			}
			os.Remove(path)
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return fmt.Errorf("%w: %v", ErrArchive, err)
			}
		default:
			// Hard links, devices and the like do not appear in release
			// archives; refusing is safer than guessing.
			return fmt.Errorf("%w: unsupported entry type %c for %s", ErrArchive, hdr.Typeflag, hdr.Name)
		}
	}
}

// safeJoin joins name under root, rejecting entries that would escape it.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.Join(root, name))
	if clean != root && !strings.HasPrefix(clean, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes target", ErrArchive, name)
	}
	return clean, nil
}

func writeFile(path string, r io.Reader, perm fs.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
