/*
Package keybarrier runs expensive one-time work per key while letting
unrelated keys proceed in parallel.

# Overview

Many goroutines often need the same lazily initialized resource: a session
for a user, a warmed cache entry, a connection for a tenant. keybarrier makes
sure only one caller performs the initialization for a given key, that callers
for other keys are not held up, and that once a key is done every later call
returns immediately without locking.

A Barrier combines two parts:
  - a stripe.Pool, mapping each key to one of N reference counted locks
  - a completion.Registry, recording which keys have finished

# Basic Usage

	b := keybarrier.New[string]()

	outcome, err := b.Run(ctx, "user-42", func(ctx context.Context) error {
	    return loadSession(ctx, "user-42")
	})
	if err != nil {
	    return err
	}
	log.Println(outcome) // executed, raced_after_lock, or fast_path

Use Do when the work produces a value:

	sess, outcome, err := keybarrier.Do(ctx, b, "user-42", func(ctx context.Context) (*Session, error) {
	    return openSession(ctx, "user-42")
	})

Only the caller that executed the work receives the value. Callers that skip
are expected to read the initialized resource from wherever the work stored it.

# Outcomes

Every call takes exactly one branch, reported as an Outcome and counted in
Stats:

	OutcomeFastPath        key already done, no lock taken
	OutcomeRacedAfterLock  lock taken, key finished by someone else meanwhile
	OutcomeExecuted        this call ran the work successfully
	OutcomeFailed          this call ran the work and it failed
	OutcomeInterrupted     the call stopped waiting for the lock

# Failure Semantics

If the work returns an error or panics, the lock is released, the key is not
marked done, and Run returns a *WorkError (errors.Is(err, ErrWorkFailed)).
The next call for the key runs the work again. Run never retries by itself;
see package retry for a caller-side policy.

If ctx is cancelled, or the WithLockTimeout deadline passes, while waiting for
the lock, Run returns a *LockInterruptedError (errors.Is(err,
ErrLockInterrupted)) and has no effect on the registry.

# Captured State

Work functions see the outside world only through their closure and the
context they are passed. Copy the inputs the work needs into locals before
building the closure, and write results somewhere other callers can read once
the key is done:

	for _, id := range ids {
	    b.Run(ctx, id, func(ctx context.Context) error {
	        s, err := openSession(ctx, id)
	        if err != nil {
	            return err
	        }
	        sessions.Store(id, s)
	        return nil
	    })
	}

# Observability

Logging, metrics, and tracing are configured with options:

	b := keybarrier.New[string](
	    keybarrier.WithLogger(logger),
	    keybarrier.WithMetrics(true),
	    keybarrier.WithTracing(true),
	)

Branch traces are logged at DEBUG. Metrics and spans use the global
OpenTelemetry providers.

# Scope

A Barrier coordinates goroutines in one process. It is not a distributed
lock, keeps no state on disk, and makes no fairness promises: waiters for the
same key are woken in whatever order the runtime chooses.
*/
package keybarrier
