package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// defaultTimeout bounds a single invocation of the tracker binary.
const defaultTimeout = 30 * time.Second

// ExecClient drives an external tracker binary, invoking it as
// `<bin> <verb> [args...] --json` and parsing its JSON stdout. Many
// tracker binaries emit a bare object for a single-item result and an
// array for list results; ExecClient unwraps an array-of-one
// transparently when a single Item is expected.
type ExecClient struct {
	Bin     string
	Timeout time.Duration
	Runner  func(ctx context.Context, bin string, args []string) ([]byte, error)
}

// NewExecClient returns an ExecClient invoking bin with the default
// timeout and the real os/exec runner.
func NewExecClient(bin string) *ExecClient {
	return &ExecClient{Bin: bin, Timeout: defaultTimeout, Runner: runExec}
}

func runExec(ctx context.Context, bin string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s %v: %w (stderr: %s)", bin, args, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (c *ExecClient) invoke(ctx context.Context, verb string, args ...string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullArgs := append([]string{verb}, args...)
	fullArgs = append(fullArgs, "--json")

	runner := c.Runner
	if runner == nil {
		runner = runExec
	}
	return runner(ctx, c.Bin, fullArgs)
}

// unwrapItem parses out as either a single Item object or a one-element
// Item array, tolerating either tracker convention.
func unwrapItem(out []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(out, &item); err == nil && item.ID != "" {
		return item, nil
	}
	var items []Item
	if err := json.Unmarshal(out, &items); err != nil {
		return Item{}, fmt.Errorf("parsing tracker output: %w", err)
	}
	if len(items) == 0 {
		return Item{}, fmt.Errorf("tracker returned no items")
	}
	return items[0], nil
}

func (c *ExecClient) Create(ctx context.Context, title, description string) (Item, error) {
	out, err := c.invoke(ctx, "create", "--title", title, "--description", description)
	if err != nil {
		return Item{}, err
	}
	return unwrapItem(out)
}

func (c *ExecClient) List(ctx context.Context, filter Filter) ([]Item, error) {
	args := filterArgs(filter)
	out, err := c.invoke(ctx, "list", args...)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("parsing tracker list output: %w", err)
	}
	return items, nil
}

func (c *ExecClient) Get(ctx context.Context, id string) (Item, error) {
	out, err := c.invoke(ctx, "show", id)
	if err != nil {
		return Item{}, err
	}
	return unwrapItem(out)
}

func (c *ExecClient) Update(ctx context.Context, id, description string) (Item, error) {
	out, err := c.invoke(ctx, "update", id, "--description", description)
	if err != nil {
		return Item{}, err
	}
	return unwrapItem(out)
}

func (c *ExecClient) Close(ctx context.Context, id string) (Item, error) {
	out, err := c.invoke(ctx, "close", id)
	if err != nil {
		return Item{}, err
	}
	return unwrapItem(out)
}

func (c *ExecClient) AddDependency(ctx context.Context, dep Dependency) error {
	_, err := c.invoke(ctx, "dep", "add", dep.FromID, dep.ToID, "--type", string(dep.Kind))
	return err
}

func (c *ExecClient) DiscoveredFromParent(ctx context.Context, parentID string) ([]Item, error) {
	return c.List(ctx, Filter{Parent: parentID})
}

func (c *ExecClient) Export(ctx context.Context) ([]Item, error) {
	out, err := c.invoke(ctx, "export")
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("parsing tracker export output: %w", err)
	}
	return items, nil
}

func filterArgs(filter Filter) []string {
	var args []string
	if filter.Status != "" {
		args = append(args, "--status", string(filter.Status))
	}
	if filter.Parent != "" {
		args = append(args, "--parent", filter.Parent)
	}
	return args
}
