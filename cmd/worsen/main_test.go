package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-image-worsen/internal/codec"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/pixel"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	buf, err := pixel.NewBuffer(5, 5)
	require.NoError(t, err)
	buf.Fill(90, 180, 30)
	data, err := codec.EncodeBytes(codec.NewCodec(0), buf, codec.FormatPNG)
	require.NoError(t, err)

	location := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(location, data, 0o644))
	return location
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_WritesOutputAndPrintsStatistics(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "cat.png")

	out, err := execute(t, "-o", "stats", "-o", "random-noise", "--seed", "3", "--workers", "1", input)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "cat.worse.png"))
	assert.Contains(t, out, input)
	assert.Contains(t, out, "samples: 75 (3 distinct values)")
	assert.Contains(t, out, "entropy: 1.584963 bits")
}

// captureStdout runs fn with os.Stdout, and gin's writer bound to it, redirected to a pipe
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	prevStdout, prevGinWriter, prevMode := os.Stdout, gin.DefaultWriter, gin.Mode()
	os.Stdout, gin.DefaultWriter = w, w
	gin.SetMode(gin.DebugMode)
	defer func() {
		os.Stdout, gin.DefaultWriter = prevStdout, prevGinWriter
		gin.SetMode(prevMode)
	}()

	done := make(chan string)
	go func() {
		var out bytes.Buffer
		_, _ = io.Copy(&out, r)
		done <- out.String()
	}()

	fn()
	require.NoError(t, w.Close())
	return <-done
}

func TestRun_StdoutCarriesOnlyReports(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "cat.png")

	var runErr error
	out := captureStdout(t, func() {
		cmd := newRootCommand()
		cmd.SetArgs([]string{"-o", "stats", "-o", "random-noise", "--seed", "3", input})
		runErr = cmd.Execute()
	})
	require.NoError(t, runErr)

	assert.NotContains(t, out, "[GIN")
	assert.True(t, strings.HasPrefix(out, input+"\n"), "stdout should start with the location, got %q", out)
	assert.Contains(t, out, "entropy: 1.584963 bits")
}

func TestRun_InputNamedServe(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "serve")
	t.Chdir(dir)

	out, err := execute(t, "-o", "stats", "serve")
	require.NoError(t, err)
	assert.Contains(t, out, "samples: 75 (3 distinct values)")
	assert.FileExists(t, filepath.Join(dir, "serve.worse.png"))

	_, err = execute(t, "serve", "cat.png")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestRun_Marker(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "cat.png")

	_, err := execute(t, "-o", "none", "--marker", "blurry", input)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cat.blurry.png"))
}

func TestRun_UnknownOperation(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "cat.png")

	_, err := execute(t, "-o", "none", "-o", "sharpen", input)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	assert.Equal(t, exitUsage, exitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "cat.worse.png"))
}

func TestRun_UsageErrors(t *testing.T) {
	_, err := execute(t, "-o", "none")
	assert.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "cat.png")
	assert.Equal(t, exitUsage, exitCode(err))

	_, err = execute(t, "--no-such-flag", "cat.png")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestRun_KeepGoing(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.png")
	input := writeFixture(t, dir, "dog.png")

	_, err := execute(t, "-o", "random-brightness", missing, input)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "dog.worse.png"))

	_, err = execute(t, "-o", "random-brightness", "--keep-going", missing, input)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, "dog.worse.png"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "0.1.0")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitFailure, exitCode(apperrors.NewEncodeError("failed to write image", nil)))
	assert.Equal(t, exitUsage, exitCode(apperrors.NewValidationError("no input images given", nil)))
}
