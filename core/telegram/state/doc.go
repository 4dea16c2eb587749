// Package state provides a per-key locked session store for conversational bots.
// It is domain-agnostic: the payload type is chosen by the caller and sessions
// live only in process memory.
package state
