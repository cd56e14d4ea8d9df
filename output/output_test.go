package output

import (
	"errors"
	"net/url"
	"testing"

	"github.com/bitrise-io/go-tusupload/upload"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommandFactory struct {
	calls *[][]string
	err   error
}

func (f recordingCommandFactory) Create(name string, args []string, opts *command.Opts) command.Command {
	*f.calls = append(*f.calls, append([]string{name}, args...))
	return fakeCommand{err: f.err}
}

type fakeCommand struct {
	err error
}

func (c fakeCommand) PrintableCommandArgs() string                       { return "" }
func (c fakeCommand) Run() error                                         { return c.err }
func (c fakeCommand) RunAndReturnExitCode() (int, error)                 { return 0, c.err }
func (c fakeCommand) RunAndReturnTrimmedOutput() (string, error)         { return "", c.err }
func (c fakeCommand) RunAndReturnTrimmedCombinedOutput() (string, error) { return "", c.err }
func (c fakeCommand) Start() error                                       { return c.err }
func (c fakeCommand) Wait() error                                        { return c.err }

func TestExporter_ExportResult(t *testing.T) {
	tests := []struct {
		name   string
		result upload.Result
		want   [][]string
	}{
		{
			name:   "url and media id",
			result: upload.Result{UploadURL: &url.URL{Scheme: "https", Host: "host", Path: "/files/1"}, MediaID: "m-1", Offset: 3},
			want: [][]string{
				{"envman", "add", "--key", UploadURLKey, "--value", "https://host/files/1", "--no-expand"},
				{"envman", "add", "--key", MediaIDKey, "--value", "m-1", "--no-expand"},
			},
		},
		{
			name:   "no media id",
			result: upload.Result{UploadURL: &url.URL{Scheme: "https", Host: "host", Path: "/files/$HOME"}},
			want: [][]string{
				{"envman", "add", "--key", UploadURLKey, "--value", "https://host/files/$HOME", "--no-expand"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls [][]string
			e := NewExporter(recordingCommandFactory{calls: &calls})

			require.NoError(t, e.ExportResult(tt.result))
			assert.Equal(t, tt.want, calls)
		})
	}
}

func TestExporter_ExportOutput(t *testing.T) {
	var calls [][]string
	e := NewExporter(recordingCommandFactory{calls: &calls})

	require.NoError(t, e.ExportOutput("my_key", "my value"))
	assert.Equal(t, [][]string{{"envman", "add", "--key", "my_key", "--value", "my value"}}, calls)
}

func TestExporter_ExportResult_Error(t *testing.T) {
	var calls [][]string
	e := NewExporter(recordingCommandFactory{calls: &calls, err: errors.New("envman not found")})

	err := e.ExportResult(upload.Result{UploadURL: &url.URL{Scheme: "https", Host: "host"}, MediaID: "m"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), UploadURLKey)
	assert.Len(t, calls, 1)
}
