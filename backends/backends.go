// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a device backend implements to execute an nngraph
// graph: tensor handles, the function factory that lowers each node to a configured
// function, and the kernel seam through which those functions reach numeric code.
//
// Backends register themselves (usually in an init function) per Target, and are created
// lazily, once per Target, on first use. See package backends/default to include all of them.
package backends

import (
	"os"
	"slices"
	"sync"

	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend is the API that needs to be implemented by an nngraph backend.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "cpu".
	Name() string

	// Target the backend executes on.
	Target() graph.Target

	// Initialize is called once, when the backend is first requested.
	Initialize() error

	// IsSupported returns whether the backend can run in the current environment.
	IsSupported() bool

	// SetupContext registers the backend's memory manager (and any other setting) with the context.
	SetupContext(ctx *graph.Context)

	// Capabilities returns the node types and data types the backend can lower.
	Capabilities() Capabilities

	// CreateTensor creates the handle of a graph tensor. Memory is only reserved on Allocate.
	CreateTensor(tensor *graph.Tensor) (graph.TensorHandle, error)

	// CreateSubTensor creates a view of parent with the given shape, starting at the given coordinates.
	// If extendParent is true, parent's shape is extended (to cover the sub-tensor) instead of validated.
	CreateSubTensor(parent graph.TensorHandle, shape shapes.Shape, offsets []int, extendParent bool) (graph.TensorHandle, error)

	// ConfigureNode lowers node to a configured Function.
	// It returns (nil, nil) for nodes that need no function (inputs, outputs, constants, disabled nodes).
	ConfigureNode(node graph.Node, ctx *graph.Context) (Function, error)

	// ValidateNode checks that the node is supported by the backend.
	ValidateNode(node graph.Node) error

	// Sync waits for all enqueued work to finish.
	Sync() error

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Function is a configured operator, ready to run.
type Function interface {
	Run() error
}

// Preparer is implemented by functions with a one-time preparation step (e.g. transforming
// constant weights) that runs after constants are loaded and before the first Run.
type Preparer interface {
	Prepare() error
}

// Tensor is the native tensor of a backend, as consumed by its functions and kernels.
type Tensor interface {
	graph.BackendTensor

	// MarkAsUnused tells that the contents of the tensor are no longer needed (e.g. weights
	// after they were transformed): its memory can be released.
	MarkAsUnused()

	// IsUsed returns false once MarkAsUnused is called.
	IsUsed() bool
}

// Constructor returns a new, not yet initialized, Backend.
type Constructor func() Backend

// NNGRAPH_BACKEND is the environment variable with the target to use when none is requested
// explicitly, e.g. "cpu" or "gpu".
const NNGRAPH_BACKEND = "NNGRAPH_BACKEND"

var (
	muRegistry   sync.Mutex
	constructors = make(map[graph.Target]Constructor)
	instances    = make(map[graph.Target]Backend)
)

// Register the backend constructor for target. It replaces any previous registration and
// drops an existing instance for that target.
//
// To be safe, call Register during initialization of a package.
func Register(target graph.Target, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	constructors[target] = constructor
	if backend, found := instances[target]; found {
		backend.Finalize()
		delete(instances, target)
	}
}

// IsRegistered returns whether a backend was registered for target.
func IsRegistered(target graph.Target) bool {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	_, found := constructors[target]
	return found
}

// List the targets with a registered backend, in increasing order.
func List() []graph.Target {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	targets := make([]graph.Target, 0, len(constructors))
	for target := range constructors {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	return targets
}

// Get returns the backend for target, creating and initializing it on first use.
func Get(target graph.Target) (Backend, error) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if backend, found := instances[target]; found {
		return backend, nil
	}
	constructor, found := constructors[target]
	if !found {
		return nil, errors.Errorf("no backend registered for target %s -- maybe import _ \"github.com/gomlx/nngraph/backends/default\"?", target)
	}
	backend := constructor()
	if !backend.IsSupported() {
		return nil, errors.Errorf("backend %q for target %s is not supported in this environment", backend.Name(), target)
	}
	if err := backend.Initialize(); err != nil {
		return nil, errors.WithMessagef(err, "failed to initialize backend %q", backend.Name())
	}
	klog.V(1).Infof("backend %q initialized for target %s", backend.Name(), target)
	instances[target] = backend
	return backend, nil
}

// Select returns the backend to use for the requested target:
//
// 1. If requested is TargetUnspecified, the environment variable NNGRAPH_BACKEND is used if set.
// 2. If the target is still unspecified, or it has no supported backend, the first supported
// registered target is used.
func Select(requested graph.Target) (Backend, error) {
	target := requested
	if target == graph.TargetUnspecified {
		if config, found := os.LookupEnv(NNGRAPH_BACKEND); found && config != "" {
			var err error
			target, err = graph.TargetString(config)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s=%q", NNGRAPH_BACKEND, config)
			}
		}
	}
	if target != graph.TargetUnspecified {
		backend, err := Get(target)
		if err == nil {
			return backend, nil
		}
		if requested != graph.TargetUnspecified {
			klog.Warningf("requested target %s not available (%v), falling back to the default", requested, err)
		} else {
			return nil, err
		}
	}
	for _, candidate := range List() {
		if candidate == graph.TargetUnspecified {
			continue
		}
		if backend, err := Get(candidate); err == nil {
			return backend, nil
		}
	}
	return nil, errors.Errorf("no supported backend registered (registered targets: %v)", List())
}

// FinalizeAll finalizes every instantiated backend. Registrations are kept, and backends are
// created again on the next Get.
func FinalizeAll() {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	for target, backend := range instances {
		backend.Finalize()
		delete(instances, target)
	}
}
