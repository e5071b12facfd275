package qa

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	img "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const containerWorkDir = "/submission"

// DockerRunner runs each command in a fresh container of Image with the
// submission directory copied to /submission. Network is disabled.
// Requires DOCKER_HOST (or the default socket) to reach a daemon.
type DockerRunner struct {
	Image     string
	Resources container.Resources
	Log       *zap.Logger

	cli *client.Client
}

func NewDockerRunner(ctx context.Context, image string, log *zap.Logger) (*DockerRunner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot reach docker daemon (%s): %w", os.Getenv("DOCKER_HOST"), err)
	}
	log.Info("docker runner: daemon reachable", zap.String("image", image))

	if err := pullIfNeeded(ctx, cli, image); err != nil {
		return nil, fmt.Errorf("pull image %s: %w", image, err)
	}
	return &DockerRunner{
		Image: image,
		Resources: container.Resources{
			Memory:   1 << 30, // 1 GiB
			NanoCPUs: 2e9,     // 2 CPUs
		},
		Log: log,
		cli: cli,
	}, nil
}

func (r *DockerRunner) Close() error {
	return r.cli.Close()
}

func (r *DockerRunner) Run(ctx context.Context, c Command) (*Result, error) {
	runCtx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	archive, err := tarDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", c.Dir, err)
	}

	r.Log.Debug("docker runner: starting", zap.String("cmd", c.String()), zap.String("image", r.Image))
	stdout, stderr, exitCode, err := r.runWithLogs(runCtx, append([]string{c.Name}, c.Args...), archive)
	res := &Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w after %s", c.String(), ErrTimeout, c.Timeout)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.String(), err)
	}
	res.OK = exitCode == 0
	return res, nil
}

// --- helpers ---

func pullIfNeeded(ctx context.Context, cli *client.Client, image string) error {
	if _, err := cli.ImageInspect(ctx, imageRef(image)); err == nil {
		return nil
	}
	reader, err := cli.ImagePull(ctx, imageRef(image), img.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader) // eat the progress stream
	return nil
}

func imageRef(img string) string {
	// allow "python:3.12", "ghcr.io/org/grader:latest", etc.
	if strings.Contains(img, "/") || strings.Contains(img, ":") {
		return img
	}
	return "docker.io/library/" + img + ":latest"
}

// runWithLogs creates a container, uploads the submission, runs cmd, collects logs, cleans up.
func (r *DockerRunner) runWithLogs(ctx context.Context, cmd []string, archive []byte) (stdout, stderr string, exitCode int, err error) {
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Resources:   r.Resources,
	}
	create, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      imageRef(r.Image),
		Cmd:        cmd,
		WorkingDir: containerWorkDir,
		Tty:        false,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return "", "", 0, fmt.Errorf("create: %w", err)
	}
	cid := create.ID
	defer func() {
		timeout := 2
		_ = r.cli.ContainerStop(context.Background(), cid, container.StopOptions{Timeout: &timeout})
		_ = r.cli.ContainerRemove(context.Background(), cid, container.RemoveOptions{Force: true})
	}()

	// Upload before start so the command sees the files.
	if err := r.cli.CopyToContainer(ctx, cid, "/", bytes.NewReader(archive), container.CopyToContainerOptions{AllowOverwriteDirWithFile: true}); err != nil {
		return "", "", 0, fmt.Errorf("copy submission: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return "", "", 0, fmt.Errorf("start: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, cid, container.WaitConditionNotRunning)
	select {
	case err = <-errCh:
		if err != nil {
			return "", "", 0, fmt.Errorf("wait: %w", err)
		}
	case st := <-statusCh:
		exitCode = int(st.StatusCode)
	}

	logs, err := r.cli.ContainerLogs(context.Background(), cid, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", exitCode, nil
	}
	defer logs.Close()
	var raw, outBuf, errBuf bytes.Buffer
	_, _ = io.Copy(&raw, logs)
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, bytes.NewReader(raw.Bytes())); err != nil {
		// not multiplexed: keep everything as stdout
		return raw.String(), "", exitCode, nil
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// tarDir packs dir into a tar archive rooted at submission/.
func tarDir(dir string) ([]byte, error) {
	buf := new(bytes.Buffer)
	tw := tar.NewWriter(buf)
	root := strings.TrimPrefix(containerWorkDir, "/")

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(root, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
