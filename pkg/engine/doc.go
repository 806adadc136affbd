// Package engine wires the transfer core into a single session-scoped
// context: one HTTP session with its fresh-URL cache, one metadata client,
// one cooperative scheduler and one progress bridge.
//
// An Engine is constructed once when the host session starts and closed on
// shutdown; there are no process-wide globals. The host drives it by
// invoking its frame hook once per frame and launches work through the
// Pull* helpers, which run as scheduler tasks and report their outcome
// through the progress bridge.
package engine
