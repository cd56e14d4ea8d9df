// Package output exposes upload results to subsequent steps through envman.
package output

import (
	"fmt"

	"github.com/bitrise-io/go-tusupload/upload"
	"github.com/bitrise-io/go-utils/v2/command"
)

// Output keys set after a successful upload.
const (
	UploadURLKey = "TUS_UPLOADED_URL"
	MediaIDKey   = "TUS_MEDIA_ID"
)

// Exporter ...
type Exporter struct {
	cmdFactory command.Factory
}

// NewExporter ...
func NewExporter(cmdFactory command.Factory) Exporter {
	return Exporter{cmdFactory: cmdFactory}
}

// ExportOutput exposes a value for subsequent steps.
func (e Exporter) ExportOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value}, nil)
	return runExport(cmd)
}

// ExportOutputNoExpand works like ExportOutput but does not expand environment variables in the value.
// Values returned by the upload server are exported this way.
func (e Exporter) ExportOutputNoExpand(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--no-expand"}, nil)
	return runExport(cmd)
}

// ExportResult exports the upload URL and, when the server assigned one, the media ID.
func (e Exporter) ExportResult(result upload.Result) error {
	if result.UploadURL != nil {
		if err := e.ExportOutputNoExpand(UploadURLKey, result.UploadURL.String()); err != nil {
			return fmt.Errorf("export %s: %w", UploadURLKey, err)
		}
	}
	if result.MediaID != "" {
		if err := e.ExportOutputNoExpand(MediaIDKey, result.MediaID); err != nil {
			return fmt.Errorf("export %s: %w", MediaIDKey, err)
		}
	}
	return nil
}

func runExport(cmd command.Command) error {
	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		return fmt.Errorf("exporting output with envman failed: %s, output: %s", err, out)
	}
	return nil
}
