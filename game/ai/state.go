package ai

// State enumerates the high-level behavior states of an agent.
type State int

const (
	StateIdle      State = iota
	StateWandering       // random patrol
	StateChasing         // actively pursuing the target
	StateAttacking       // close enough to attack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWandering:
		return "wandering"
	case StateChasing:
		return "chasing"
	case StateAttacking:
		return "attacking"
	}
	return "unknown"
}

// Behavior notifications emitted on the agent's hub.
const (
	EventIdle           = "idle"
	EventStartWandering = "start_wandering"
	EventStartChasing   = "start_chasing"
	EventStopChasing    = "stop_chasing"
	EventStartAttacking = "start_attacking"
	EventAttack         = "attack"
	EventTargetDetected = "target_detected"
	EventTargetLost     = "target_lost"
)

// Animator parameter names.
const (
	ParamSpeed     = "speed"
	ParamChasing   = "isChasing"
	ParamAttacking = "isAttacking"
	TriggerAttack  = "attack"
)
