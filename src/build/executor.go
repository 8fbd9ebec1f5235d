package build

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Executor runs one platform's image build with an external build tool.
// Run always returns the tool's captured output, also on failure.
type Executor interface {
	Name() string
	Run(ctx context.Context, inv Invocation) (*ExecResult, error)
}

// CommandLiner is implemented by executors that can show the command they
// would run for an invocation. Used by dry runs.
type CommandLiner interface {
	CommandLine(inv Invocation) []string
}

// ExecutorOptions configure an executor instance.
type ExecutorOptions struct {
	// Path overrides the tool binary (e.g. "/kaniko/executor", "docker").
	Path string
	// ExtraArgs are appended verbatim to every invocation.
	ExtraArgs []string
}

// ExecResult is what a finished tool invocation reports.
type ExecResult struct {
	Output string      // combined stdout/stderr, verbatim
	Digest string      // pushed image digest, when the tool reports one
	Steps  []StepEvent // parsed build steps, best effort
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func(ExecutorOptions) Executor{}
)

// RegisterExecutor adds an executor constructor to the global registry.
// Called from init() in each executor package.
func RegisterExecutor(name string, constructor func(ExecutorOptions) Executor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("build: duplicate executor registration: %s", name))
	}
	registry[name] = constructor
}

// GetExecutor returns a new instance of the named executor.
func GetExecutor(name string, opts ExecutorOptions) (Executor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("build: unknown executor: %s (registered: %v)", name, executorNames())
	}
	return ctor(opts), nil
}

// Executors returns sorted names of all registered executors.
func Executors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return executorNames()
}

func executorNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
