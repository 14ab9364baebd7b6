package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

type FileSource struct{}

func NewFileSource() *FileSource {
	return &FileSource{}
}

func (s *FileSource) Scheme() []string {
	return []string{"file"}
}

func (s *FileSource) Open(ctx context.Context, loc *url.URL) (io.ReadCloser, error) {
	_ = ctx
	path := filepath.FromSlash(loc.Path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &igniteErrors.FetchError{Status: http.StatusText(http.StatusNotFound), StatusCode: http.StatusNotFound}
		}
		if os.IsPermission(err) {
			return nil, &igniteErrors.FetchError{Status: http.StatusText(http.StatusForbidden), StatusCode: http.StatusForbidden}
		}
		return nil, err
	}
	info, err := f.Stat()
	if err == nil && info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return f, nil
}

type HTTPSource struct {
	client *http.Client
}

func NewHTTPSource(client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client}
}

func (s *HTTPSource) Scheme() []string {
	return []string{"http", "https"}
}

func (s *HTTPSource) Open(ctx context.Context, loc *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		status := http.StatusText(resp.StatusCode)
		if status == "" {
			status = resp.Status
		}
		return nil, &igniteErrors.FetchError{Status: status, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
