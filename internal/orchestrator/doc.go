// Package orchestrator is the control plane of the streaming server. It owns
// the mapping from externally visible identifiers (virtual hosts, wildcard
// domains, application names) to runtime objects, reconciles that topology
// against configuration snapshots, and routes cross-component commands
// (create or delete an application, pull a remote stream, resolve a playback
// URL) to the registered provider, router, and publisher modules.
//
// Reconciliation is staged and all-or-nothing per virtual host: a snapshot is
// diffed against the live topology, every surviving item is classified as
// NotChanged, Changed, or Delete, and the whole subtree is committed with a
// conditional state transition. Readers never observe a mixture of old and
// new topology for the same host.
//
// All operations are synchronous and memory-only; anything slow (the actual
// media I/O) is delegated to provider modules. Locks are never held across
// calls into module code, so modules may call back into the orchestrator,
// including registering other modules, from their own notification callbacks.
package orchestrator
