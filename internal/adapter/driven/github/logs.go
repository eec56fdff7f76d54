package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// maxArchiveBytes caps how much of a log archive is read into memory.
const maxArchiveBytes = 64 << 20

// ErrArchiveTooLarge reports a log archive over the download cap. A truncated
// zip is unreadable, so the archive is refused whole.
var ErrArchiveTooLarge = errors.New("log archive exceeds size limit")

// fetchArchive downloads a pre-signed archive URL returned by the Actions API.
func (c *Client) fetchArchive(ctx context.Context, op, archiveURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, &model.APIError{Op: op, Err: err}
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, &model.APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if resp.ContentLength > c.maxArchive {
		return nil, &model.APIError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: %d bytes advertised, limit %d", ErrArchiveTooLarge, resp.ContentLength, c.maxArchive)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxArchive+1))
	if err != nil {
		return nil, &model.APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading archive: %w", err)}
	}
	if int64(len(data)) > c.maxArchive {
		return nil, &model.APIError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: limit %d", ErrArchiveTooLarge, c.maxArchive)}
	}

	return data, nil
}
