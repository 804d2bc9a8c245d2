// Package testutil holds helpers for tests that need a local Docker daemon.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// CleanupLabel marks containers created by tests.
const CleanupLabel = "kitab-test"

// RequireDocker returns a Docker client or skips the test when the daemon is
// unreachable or KITAB_SKIP_DOCKER is set. Containers labelled for this test
// are removed on cleanup.
func RequireDocker(t testing.TB) *client.Client {
	t.Helper()
	if testing.Short() || os.Getenv("KITAB_SKIP_DOCKER") != "" {
		t.Skip("docker tests disabled")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("docker is not running: %v", err)
	}

	t.Cleanup(func() {
		cleanupTestContainers(t, cli)
		cli.Close()
	})
	return cli
}

// UniqueContainerName returns kitab-test-<prefix>-<test>-<random>.
func UniqueContainerName(t testing.TB, prefix string) string {
	t.Helper()
	return fmt.Sprintf("kitab-test-%s-%s-%s", prefix, sanitizeName(t.Name()), randString(4))
}

// ContainerLabels returns the labels cleanup looks for.
func ContainerLabels(t testing.TB) map[string]string {
	return map[string]string{CleanupLabel: sanitizeName(t.Name())}
}

// FindFreePort asks the kernel for an unused TCP port.
func FindFreePort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}

func cleanupTestContainers(t testing.TB, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filterArgs := filters.NewArgs()
	filterArgs.Add("label", fmt.Sprintf("%s=%s", CleanupLabel, sanitizeName(t.Name())))

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		t.Logf("failed to list containers for cleanup: %v", err)
		return
	}

	for _, c := range containers {
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			t.Logf("failed to remove container %s: %v", c.ID, err)
		}
	}
}

func randString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sanitizeName turns a test name into something Docker accepts in names and labels.
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			result = append(result, c)
		case c == '/' || c == '_' || c == '-':
			result = append(result, '-')
		}
	}
	if len(result) > 30 {
		result = result[:30]
	}
	return string(result)
}
