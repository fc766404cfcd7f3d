package lifecycle

// Phase is the coordinator's position in its lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseProvisioning
	PhaseConnecting
	PhaseRunning
	PhaseDraining
	PhaseShutDown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseProvisioning:
		return "provisioning"
	case PhaseConnecting:
		return "connecting"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}
