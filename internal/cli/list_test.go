// list_test.go contains unit tests for the pure formatting and error mapping
// helpers shared by the CLI commands.

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/zhpack/internal/model"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		entry model.ArchiveEntry
		want  string
	}{
		{name: "file", entry: model.ArchiveEntry{Name: "a.txt", Size: 1024}, want: "1024"},
		{name: "empty file", entry: model.ArchiveEntry{Name: "a.txt"}, want: "0"},
		{name: "directory", entry: model.ArchiveEntry{Name: "dir/", Dir: true}, want: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.entry))
		})
	}
}

func TestPrintListResultText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printListResultText(&buf, nil))
	assert.Equal(t, "Archive is empty.\n", buf.String())

	buf.Reset()
	require.NoError(t, printListResultText(&buf, []model.ArchiveEntry{
		{Name: "汉化/", Dir: true},
		{Name: "汉化/a_items.txt", Size: 12},
	}))
	assert.Equal(t, ""+
		"SIZE       NAME\n"+
		"-          汉化/\n"+
		"12         汉化/a_items.txt\n", buf.String())
}

func TestPrintListResultJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printListResultJSON(&buf, "x.zip", nil))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "x.zip", decoded["archive"])
	assert.Equal(t, []interface{}{}, decoded["entries"])
}

func TestToCLIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ExitCode
	}{
		{name: "cli error keeps its code", err: model.NewCLIError(model.ExitInvalidConfig, "bad"), want: model.ExitInvalidConfig},
		{name: "wrapped cli error", err: fmt.Errorf("ctx: %w", model.NewCLIError(model.ExitInvalidConfig, "bad")), want: model.ExitInvalidConfig},
		{name: "io failure", err: model.IOFailure("extract", "a.zip", errors.New("eof")), want: model.ExitIOFailure},
		{name: "missing source", err: model.MissingSource("create", "a.txt", nil), want: model.ExitMissingSource},
		{name: "precondition", err: model.PreconditionFailed("beautify", "汉化", nil), want: model.ExitPrecondition},
		{name: "plain error", err: errors.New("boom"), want: model.ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toCLIError(tt.err)
			assert.Equal(t, tt.want, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestPrintError(t *testing.T) {
	t.Cleanup(func() { jsonOutput = false })

	var buf bytes.Buffer
	jsonOutput = false
	printError(&buf, "invalid configuration", errors.New("charset"))
	assert.Equal(t, "Error: invalid configuration: charset\n", buf.String())

	buf.Reset()
	printError(&buf, "plain", nil)
	assert.Equal(t, "Error: plain\n", buf.String())

	buf.Reset()
	jsonOutput = true
	printError(&buf, "invalid configuration", errors.New("charset"))

	var decoded struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "invalid configuration", decoded.Error.Message)
	assert.Equal(t, "charset", decoded.Error.Detail)
}
