package compute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/chaoschain/go-evidence-provider/internal/yaml"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"golang.org/x/xerrors"
)

// DockerBackend runs catalog images on the local docker daemon. The input is
// passed in the environment and the output is read from stdout.
type DockerBackend struct {
	c       *client.Client
	catalog *yaml.Catalog
}

func NewDockerBackend(catalog *yaml.Catalog) (*DockerBackend, error) {
	if catalog == nil {
		return nil, fmt.Errorf("docker backend needs a function catalog")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, xerrors.Errorf("create docker client: %w", err)
	}
	return &DockerBackend{c: cli, catalog: catalog}, nil
}

func (d *DockerBackend) Provider() models.ComputeProvider {
	return models.ComputeDocker
}

func (d *DockerBackend) Submit(ctx context.Context, req *Request) (*Submission, error) {
	spec, ok := d.catalog.Lookup(req.FunctionName)
	if !ok || spec.Image == "" {
		return nil, fmt.Errorf("%w: %s has no image", ErrUnknownFunction, req.FunctionName)
	}

	containerName := constants.DOCKER_CONTAINER_NAME_PREFIX + req.ID
	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Env:          executionEnv(spec, req),
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &container.HostConfig{NetworkMode: "none"}

	created, err := d.c.ContainerCreate(ctx, cfg, hostCfg, nil, nil, containerName)
	if client.IsErrNotFound(err) {
		if err = d.pullImage(ctx, spec.Image); err != nil {
			return nil, err
		}
		created, err = d.c.ContainerCreate(ctx, cfg, hostCfg, nil, nil, containerName)
	}
	if err != nil {
		return nil, xerrors.Errorf("create container for %s: %w", req.FunctionName, err)
	}
	defer func() {
		if err := d.c.ContainerRemove(context.Background(), created.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			logs.GetLogger().Warnf("remove container %s failed, error: %v", containerName, err)
		}
	}()

	if err = d.c.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return nil, xerrors.Errorf("start container %s: %w", containerName, err)
	}

	statusCh, errCh := d.c.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err = <-errCh:
		return nil, xerrors.Errorf("wait container %s: %w", containerName, err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	out, err := d.c.ContainerLogs(ctx, created.ID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, xerrors.Errorf("read logs of %s: %w", containerName, err)
	}
	defer out.Close()
	stdout, stderr, err := demuxLogs(out)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("container %s exited with code %d: %s", containerName, exitCode, strings.TrimSpace(string(stderr)))
	}
	return &Submission{RawOutput: stdout, Timestamp: time.Now().UTC()}, nil
}

func (d *DockerBackend) pullImage(ctx context.Context, image string) error {
	logs.GetLogger().Infof("pulling image %s", image)
	rd, err := d.c.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return xerrors.Errorf("pull image %s: %w", image, err)
	}
	defer rd.Close()
	return printOut(rd)
}

// printOut drains a docker progress stream and surfaces its final error line.
func printOut(rd io.Reader) error {
	var lastLine []byte
	buf, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	lines := bytes.Split(bytes.TrimSpace(buf), []byte("\n"))
	if len(lines) > 0 {
		lastLine = lines[len(lines)-1]
	}
	if bytes.Contains(lastLine, []byte(`"error"`)) {
		return fmt.Errorf("docker: %s", lastLine)
	}
	return nil
}

func demuxLogs(rd io.Reader) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rd); err != nil {
		return nil, nil, xerrors.Errorf("demux container output: %w", err)
	}
	return cleanOutput(stdout.Bytes()), stderr.Bytes(), nil
}

// cleanOutput drops terminal escape sequences some images print around their
// result.
func cleanOutput(out []byte) []byte {
	return []byte(strings.TrimSpace(stripansi.Strip(string(out))))
}

func executionEnv(spec yaml.FunctionSpec, req *Request) []string {
	env := append([]string{}, spec.Env...)
	return append(env,
		constants.ENV_EXECUTION_FUNCTION+"="+req.FunctionName,
		constants.ENV_EXECUTION_INPUT+"="+string(req.Input),
	)
}
