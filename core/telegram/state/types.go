package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and the draft collected so far.
type Session[T any] struct {
	State State
	Data  T
}

// Active reports whether the session is in a non-idle step.
func (s *Session[T]) Active() bool {
	return s != nil && s.State != "" && s.State != StateIdle
}
