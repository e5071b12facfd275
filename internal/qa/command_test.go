package qa

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommand(t *testing.T) {
	c, err := BuildCommand("flake8 {file} --max-line-length=100", "assignment.py", "/tmp/sub", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "flake8", c.Name)
	assert.Equal(t, []string{"assignment.py", "--max-line-length=100"}, c.Args)
	assert.Equal(t, "/tmp/sub", c.Dir)
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Equal(t, "flake8 assignment.py --max-line-length=100", c.String())
}

func TestBuildCommandQuoted(t *testing.T) {
	c, err := BuildCommand(`python -m pytest {file} -k "not slow"`, "test.py", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "python", c.Name)
	assert.Equal(t, []string{"-m", "pytest", "test.py", "-k", "not slow"}, c.Args)
}

func TestBuildCommandErrors(t *testing.T) {
	_, err := BuildCommand("   ", "a.py", "", 0)
	assert.Error(t, err)

	_, err = BuildCommand(`flake8 "unterminated`, "a.py", "", 0)
	assert.Error(t, err)
}

func TestExecRunnerExitCodes(t *testing.T) {
	r := NewExecRunner(nil)
	dir := t.TempDir()

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}, Dir: dir, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)

	res, err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}, Dir: dir, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunnerUsesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	res, err := NewExecRunner(nil).Run(context.Background(), Command{Name: "ls", Dir: dir, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "marker.txt")
}

func TestExecRunnerTimeout(t *testing.T) {
	res, err := NewExecRunner(nil).Run(context.Background(), Command{Name: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	require.NotNil(t, res)
	assert.True(t, res.TimedOut)
	assert.False(t, res.OK)
}

func TestExecRunnerTimeoutKillsBackgroundChildren(t *testing.T) {
	start := time.Now()
	res, err := NewExecRunner(nil).Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 6 & wait"},
		Dir:     t.TempDir(),
		Timeout: 300 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	require.NotNil(t, res)
	assert.True(t, res.TimedOut)
	assert.Less(t, elapsed, 3*time.Second, "a child holding the output pipes must not outlive the timeout")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := NewExecRunner(nil).Run(context.Background(), Command{Name: "definitely-not-a-real-tool-xyz", Timeout: time.Second})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestImageRef(t *testing.T) {
	assert.Equal(t, "docker.io/library/python:latest", imageRef("python"))
	assert.Equal(t, "python:3.12", imageRef("python:3.12"))
	assert.Equal(t, "ghcr.io/org/grader", imageRef("ghcr.io/org/grader"))
}

func TestTarDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assignment.py"), []byte("print(1)\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "x.csv"), []byte("a,b\n"), 0o644))

	b, err := tarDir(dir)
	require.NoError(t, err)

	files := map[string]string{}
	tr := tar.NewReader(bytes.NewReader(b))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeReg {
			body, err := io.ReadAll(tr)
			require.NoError(t, err)
			files[hdr.Name] = string(body)
		}
	}
	assert.Equal(t, "print(1)\n", files["submission/assignment.py"])
	assert.Equal(t, "a,b\n", files["submission/data/x.csv"])
}
