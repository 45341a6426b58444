package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no snapshot exists for an account.
var ErrNotFound = errors.New("snapshot not found")

// Source loads the current voting snapshot of an account.
type Source interface {
	Load(ctx context.Context, account string) (*Snapshot, error)
}

// FileSource reads <dir>/<account>.json.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Load(ctx context.Context, account string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account == "" || strings.ContainsAny(account, `/\`) || account == "." || account == ".." {
		return nil, fmt.Errorf("invalid account %q", account)
	}

	f, err := os.Open(filepath.Join(s.dir, account+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	if snap.Account == "" {
		snap.Account = account
	}
	return snap, nil
}

// HTTPSource fetches GET <base>/accounts/<account>/governance.
type HTTPSource struct {
	base   string
	client *http.Client
}

func NewHTTPSource(base string, httpClient *http.Client) *HTTPSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPSource{base: strings.TrimRight(base, "/"), client: httpClient}
}

func (s *HTTPSource) Load(ctx context.Context, account string) (*Snapshot, error) {
	u := s.base + "/accounts/" + url.PathEscape(account) + "/governance"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, account)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("snapshot api %s: %s: %s", account, resp.Status, strings.TrimSpace(string(b)))
	}

	snap, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if snap.Account == "" {
		snap.Account = account
	}
	return snap, nil
}
