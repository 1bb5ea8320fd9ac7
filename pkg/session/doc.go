/*
Package session contains the two orchestrating state machines.

An Upgrade session sequences the eight upgrade stages — preflight, snapshot,
maintenance on, release fetch, dependency install, schema migration,
permission normalization, maintenance off — strictly in order. Every stage
either runs to completion or aborts the whole session into Failed; there is
no partial continuation and no automatic rollback. The snapshot taken at the
start is the sole recovery mechanism, consumed only by an explicit Rollback
session.

A Rollback session is the shorter chain: restore the snapshot, reinstall
dependencies, clear caches. Its only expected failure is a missing snapshot,
detected before the live installation is touched.

Both sessions capture their configuration once at construction, record every
transition in the journal, and depend on small component interfaces so tests
can drive the machines with fake stages.
*/
package session
