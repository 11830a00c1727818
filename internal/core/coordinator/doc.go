// Package coordinator implements the per-room session coordinator.
//
// A Coordinator owns one room's identity and live engine:
//
//   - Binder binds the room identity exactly once, adopting one persisted
//     by an earlier process.
//   - Admit validates and upgrades connections and hands them to the
//     engine once it is hydrated, without waiting for hydration itself.
//   - Engine lazily hydrates the room from storage through a single
//     in-flight future shared by all callers.
//   - Scheduler bounds snapshot writes to one per interval, leading and
//     trailing, so no accepted change is left unpersisted.
//
// Registry keeps one live coordinator per room key and evicts
// coordinators whose hydration failed, so the next request starts over.
//
// State machine:
//
//	unbound -> binding -> cold -> hydrating -> warm_clean <-> warm_dirty
//	                                       \-> failed
package coordinator
