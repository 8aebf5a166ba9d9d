package lifecycle

// State 一次确认流程所处的阶段
type State string

const (
	StateIdle              State = "idle"
	StateCreatingRecord    State = "creating_record"
	StatePreparingPsbt     State = "preparing_psbt"
	StateAwaitingSignature State = "awaiting_signature"
	StateBroadcasting      State = "broadcasting"
	StateRecordUpdating    State = "record_updating"
	StateDone              State = "done"
	StateCanceling         State = "canceling"
	StateFailed            State = "failed"
)

// 拿到 txid 之后 (RecordUpdating 起) 没有回到 Canceling 的边
var transitions = map[State][]State{
	StateIdle:              {StateCreatingRecord},
	StateCreatingRecord:    {StatePreparingPsbt, StateFailed},
	StatePreparingPsbt:     {StateAwaitingSignature, StateCanceling},
	StateAwaitingSignature: {StateBroadcasting, StateCanceling},
	StateBroadcasting:      {StateRecordUpdating, StateCanceling},
	StateRecordUpdating:    {StateDone},
	StateCanceling:         {StateFailed},
}

// CanTransition reports whether from -> to is an edge of the attempt state machine.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
