package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/melbahja/got"
)

// DownloadRemote fetches url into dest. client may be nil.
func DownloadRemote(ctx context.Context, client *http.Client, url, dest string) error {
	downloader := got.New()
	if client != nil {
		downloader.Client = client
	}

	if err := downloader.Do(got.NewDownload(ctx, url, dest)); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}
