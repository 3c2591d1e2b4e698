// Package dockerrun executes the inference runner inside a container
// instead of as a host subprocess, for hosts where vLLM is only
// available as an image. The request, result, and weight directories
// are bind-mounted so the file contracts are identical either way.
package dockerrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

type Opts struct {
	Image       string
	GPUs        string
	Command     []string
	RequestsDir string
	ResultsDir  string
	WeightsDir  string
	LogPath     string
}

// RunBatch runs one inference batch to completion in a container,
// streaming the container log to Opts.LogPath afterwards. The caller's
// context cancels the wait and force-removes the container.
func RunBatch(ctx context.Context, opts *Opts) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	mounts, err := bindMounts(opts)
	if err != nil {
		return err
	}

	hostCfg := &container.HostConfig{Mounts: mounts}
	if req, ok := gpuRequest(opts.GPUs); ok {
		hostCfg.DeviceRequests = []container.DeviceRequest{req}
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  opts.Image,
			Cmd:    opts.Command,
			Labels: map[string]string{"leaseaudit": "true"},
		},
		HostConfig: hostCfg,
	})
	if err != nil {
		return fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("starting container: %w", err)
	}

	waitResult := cli.ContainerWait(ctx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			captureLogs(cli, containerID, opts.LogPath)
			return fmt.Errorf("waiting for container: %w", err)
		case status := <-waitResult.Result:
			captureLogs(cli, containerID, opts.LogPath)
			if status.StatusCode != 0 {
				return fmt.Errorf("container exited with status %d", status.StatusCode)
			}
			return nil
		case <-ctx.Done():
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			return ctx.Err()
		}
	}
}

func bindMounts(opts *Opts) ([]mount.Mount, error) {
	var mounts []mount.Mount
	for _, dir := range []string{opts.RequestsDir, opts.ResultsDir, opts.WeightsDir} {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving mount %s: %w", dir, err)
		}
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: abs,
			Target: abs,
		})
	}
	return mounts, nil
}

func gpuRequest(gpus string) (container.DeviceRequest, bool) {
	switch gpus {
	case "", "none":
		return container.DeviceRequest{}, false
	case "all":
		return container.DeviceRequest{Driver: "nvidia", Count: -1, Capabilities: [][]string{{"gpu"}}}, true
	default:
		n, err := strconv.Atoi(gpus)
		if err != nil || n < 1 {
			return container.DeviceRequest{}, false
		}
		return container.DeviceRequest{Driver: "nvidia", Count: n, Capabilities: [][]string{{"gpu"}}}, true
	}
}

func captureLogs(cli *client.Client, containerID, logPath string) {
	if logPath == "" {
		return
	}
	reader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return
	}
	os.WriteFile(logPath, data, 0o644)
	fmt.Fprintf(os.Stderr, "%s", data)
}
