// Package completion records which keys have finished their one-time work.
//
// A Registry is consulted by the barrier twice per slow-path call: once
// without any lock (the fast path) and once while holding the key's stripe
// lock. Implementations must therefore be safe for concurrent Has and
// MarkDone calls without external locking.
//
// # Basic Usage
//
//	done := completion.NewMap[string]()
//	done.MarkDone("user-42")
//
//	if done.Has("user-42") {
//	    // already initialized
//	}
//
// # Growth
//
// Map never evicts. Its size is the number of distinct keys that have ever
// completed, which matches the barrier's guarantee that completed work is
// never repeated. Forget exists for operators who need to force a key to run
// again; see its documentation for the caveat.
package completion
