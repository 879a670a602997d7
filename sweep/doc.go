// Package sweep drives parameter sweeps of an external cache-hierarchy
// simulator.
//
// # Reading Guide
//
//   - config.go: CacheConfig and the Associativity variant ("fully" or a way count)
//   - space.go: sweep dimensions and the ParameterSpace enumeration order
//   - builder.go: merging a base config with a point's overrides, build parameters
//   - layout.go: report naming templates and directory creation
//   - runner.go: the simulator command-line contract and process execution
//   - driver.go: planning and sequential execution with a failure policy
//   - suite.go: the experiments YAML file
//
// Reports can be searched afterwards with sweep/report.
package sweep
