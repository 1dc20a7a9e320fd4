// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package config defines the format-agnostic model of a simulation: its date
// range, its shared drivers and its declared nodes with their dependency
// references.
//
// # Loaders
//
// The `Loader` interface is implemented by hcl_adapter and yaml_adapter. Both
// produce the same `*Model`, so the graph builder and the simulation loop never
// see the source format. Raw values (node parameters, driver parameters) are
// plain Go values: float64, string, bool, []any and map[string]any. Decoding
// them into typed parameter structs is left to the node types.
//
// # Declaration order
//
// The order of `Model.Nodes` is the declaration order. The scheduler breaks
// ties with it, so loaders must produce it deterministically.
package config
