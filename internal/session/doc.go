// Package session manages model lifetimes for the bridge. It is structured
// into small files by concern:
//
//   - types.go: State, GenerationRequest/Result, ErrorKind, Snapshot.
//   - errors.go: error taxonomy and Is* helpers.
//   - config.go: Config and package defaults.
//   - model.go: ModelHandle, the owner of one engine context.
//   - session.go: Session state machine (load, unload, readiness).
//   - generate.go: generation, retry of transient engine errors, echo mode.
//   - registry.go: Registry, the lock-protected id -> session table.
//   - events.go: lifecycle events and publishers.
//
// All mutating operations on a Session are serialized. Long-running work
// (engine load, generation) runs without holding the session lock; an
// in-flight operation record lets Unload and replacing loads cancel it and
// wait for it before the engine context is released.
package session
