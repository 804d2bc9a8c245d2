package defra

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/jackzampolin/kitab/internal/backoff"
)

const (
	DefaultImage = "sourcenetwork/defradb:latest"
	DefaultPort  = "9181"

	// Label marks every container kitab creates.
	Label = "kitab-defra"

	namePrefix    = "kitab-defra-"
	containerPort = nat.Port("9181/tcp")
	dataDir       = "/data"
	readyTimeout  = 30 * time.Second
)

// Status is the lifecycle state of the node container.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusMissing  Status = "missing"
)

// ContainerNameFor derives the container name for a kitab home directory.
// The readable part comes from the directory holding the home; the hash of
// the cleaned path keeps two homes from sharing a node.
func ContainerNameFor(homePath string) string {
	clean := filepath.Clean(homePath)
	sum := sha256.Sum256([]byte(clean))
	suffix := hex.EncodeToString(sum[:])[:8]

	slug := nameSlug(filepath.Base(filepath.Dir(clean)))
	if slug == "" {
		return namePrefix + suffix
	}
	return namePrefix + slug + "-" + suffix
}

// nameSlug keeps the characters Docker accepts in names, lowercased.
func nameSlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
		if b.Len() >= 24 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

// ContainerConfig configures the node container.
type ContainerConfig struct {
	// Name wins over HomePath when both are set.
	Name     string
	HomePath string
	Image    string
	Port     string
	// DataPath is bind-mounted as the node's root directory.
	DataPath string
	// Labels are added to Label; tests use them for cleanup.
	Labels map[string]string
	Logger *slog.Logger
}

// settings is the resolved container configuration.
type settings struct {
	name     string
	image    string
	port     string
	dataPath string
	labels   map[string]string
}

func newSettings(cfg ContainerConfig) settings {
	s := settings{
		name:     cfg.Name,
		image:    cfg.Image,
		port:     cfg.Port,
		dataPath: cfg.DataPath,
		labels:   map[string]string{Label: "true"},
	}
	if s.name == "" {
		s.name = ContainerNameFor(cfg.HomePath)
	}
	if s.image == "" {
		s.image = DefaultImage
	}
	if s.port == "" {
		s.port = DefaultPort
	}
	for k, v := range cfg.Labels {
		s.labels[k] = v
	}
	return s
}

// spec builds the create request for a fresh node.
func (s settings) spec() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image: s.image,
		Cmd: []string{
			"start",
			"--no-keyring",
			"--url", "0.0.0.0:" + containerPort.Port(),
			"--store", "badger",
			"--rootdir", dataDir,
		},
		Labels:       s.labels,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
	}
	host := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: {{HostIP: "127.0.0.1", HostPort: s.port}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if s.dataPath != "" {
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: s.dataPath, Target: dataDir}}
	}
	return cfg, host
}

// MismatchError reports an existing container created with other settings.
type MismatchError struct {
	Field string
	Have  string
	Want  string
}

func (e *MismatchError) Error() string {
	if e.Have == "" {
		return fmt.Sprintf("existing container has no %s, config wants %q", e.Field, e.Want)
	}
	return fmt.Sprintf("existing container %s is %q, config wants %q", e.Field, e.Have, e.Want)
}

// check compares an existing container against the settings. mounts maps
// container destination to host source.
func (s settings) check(img string, ports nat.PortMap, mounts map[string]string) error {
	if img != s.image {
		return &MismatchError{Field: "image", Have: img, Want: s.image}
	}
	var bound string
	if b := ports[containerPort]; len(b) > 0 {
		bound = b[0].HostPort
	}
	if bound != s.port {
		return &MismatchError{Field: "port", Have: bound, Want: s.port}
	}
	if s.dataPath != "" && filepath.Clean(mounts[dataDir]) != filepath.Clean(s.dataPath) {
		return &MismatchError{Field: "data mount", Have: mounts[dataDir], Want: s.dataPath}
	}
	return nil
}

// Container runs the DefraDB node behind store.backend: defra.
type Container struct {
	settings
	cli    *client.Client
	logger *slog.Logger
}

// NewContainer connects to the Docker daemon from the environment.
func NewContainer(cfg ContainerConfig) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := newSettings(cfg)
	return &Container{
		settings: s,
		cli:      cli,
		logger:   logger.With("container", s.name),
	}, nil
}

// Name returns the container name.
func (c *Container) Name() string { return c.name }

// URL returns the node's API address on the host.
func (c *Container) URL() string { return "http://localhost:" + c.port }

// Close closes the Docker client.
func (c *Container) Close() error { return c.cli.Close() }

// Status reports the container state.
func (c *Container) Status(ctx context.Context) (Status, error) {
	st, _, err := c.lookup(ctx)
	return st, err
}

// Check reports a *MismatchError when an existing container was created
// with another image, port or data mount. No container is not an error.
func (c *Container) Check(ctx context.Context) error {
	st, id, err := c.lookup(ctx)
	if err != nil || st == StatusMissing {
		return err
	}
	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	var (
		img   string
		ports nat.PortMap
	)
	if info.Config != nil {
		img = info.Config.Image
	}
	if info.ContainerJSONBase != nil && info.HostConfig != nil {
		ports = info.HostConfig.PortBindings
	}
	mounts := make(map[string]string, len(info.Mounts))
	for _, m := range info.Mounts {
		mounts[m.Destination] = m.Source
	}
	return c.check(img, ports, mounts)
}

// Start creates or restarts the node and waits until it answers health
// checks. A running node is left alone.
func (c *Container) Start(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}
	st, id, err := c.lookup(ctx)
	if err != nil {
		return err
	}
	switch st {
	case StatusRunning:
		return nil
	case StatusMissing:
		if id, err = c.create(ctx); err != nil {
			return err
		}
		fallthrough
	case StatusStopped:
		c.logger.Info("starting DefraDB node", "port", c.port)
		if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
	}
	return c.WaitReady(ctx, readyTimeout)
}

// Stop stops the node. The data directory is kept.
func (c *Container) Stop(ctx context.Context) error {
	st, id, err := c.lookup(ctx)
	if err != nil || st == StatusMissing || st == StatusStopped {
		return err
	}
	timeout := 10
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove deletes the container. The bind-mounted data directory is kept.
func (c *Container) Remove(ctx context.Context) error {
	st, id, err := c.lookup(ctx)
	if err != nil || st == StatusMissing {
		return err
	}
	if err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Logs returns the last tail lines of the node's output with Docker's
// stream framing removed.
func (c *Container) Logs(ctx context.Context, tail string) (string, error) {
	st, id, err := c.lookup(ctx)
	if err != nil {
		return "", err
	}
	if st == StatusMissing {
		return "", fmt.Errorf("container %s not found", c.name)
	}
	rc, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return buf.String(), nil
}

// WaitReady polls the node's health endpoint once a second.
func (c *Container) WaitReady(ctx context.Context, timeout time.Duration) error {
	hc := NewClient(c.URL())
	hc.httpClient.Timeout = 2 * time.Second
	return backoff.Poll(time.Second, timeout).Do(ctx, func() error {
		return hc.HealthCheck(ctx)
	})
}

func (c *Container) create(ctx context.Context) (string, error) {
	if err := c.pull(ctx); err != nil {
		return "", err
	}
	cfg, host := c.spec()
	resp, err := c.cli.ContainerCreate(ctx, cfg, host, nil, nil, c.name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	c.logger.Info("created DefraDB container", "image", c.image, "data", c.dataPath)
	return resp.ID, nil
}

func (c *Container) lookup(ctx context.Context) (Status, string, error) {
	list, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+c.name+"$")),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(list) == 0 {
		return StatusMissing, "", nil
	}
	switch list[0].State {
	case "running":
		return StatusRunning, list[0].ID, nil
	case "restarting":
		return StatusStarting, list[0].ID, nil
	default:
		return StatusStopped, list[0].ID, nil
	}
}

func (c *Container) pull(ctx context.Context) error {
	if _, err := c.cli.ImageInspect(ctx, c.image); err == nil {
		return nil
	}
	c.logger.Info("pulling DefraDB image", "image", c.image)
	rc, err := c.cli.ImagePull(ctx, c.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer rc.Close()
	// The pull completes only once the progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	return err
}
