/*
Package ports defines the driven ports (interfaces) of the Stepwise engine.

These interfaces decouple the wizard from external implementations, allowing
runs to be snapshotted to various storage backends and completions to be
handed to any downstream system.

# Key Interfaces

  - StateStore: persists and loads run snapshots.
  - DistributedLocker: distributed locking for concurrent access to one run.
  - CompletionSink: receives the data of completed runs.
  - FlowLoader: loads wizard configs from an external definition source.
*/
package ports
