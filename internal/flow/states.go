package flow

import "github.com/nusakov/remontbot/core/telegram/state"

// Conversation states. One linear pass from house selection to the after
// photo, with a branch into the pending-task picker for resumed work.
const (
	StateAwaitingPhone       state.State = "awaiting_phone"
	StateAwaitingFullName    state.State = "awaiting_full_name"
	StateAwaitingHouse       state.State = "awaiting_house"
	StateAwaitingAddress     state.State = "awaiting_address"
	StateConfirmingAddress   state.State = "confirming_address"
	StateAwaitingWorkType    state.State = "awaiting_work_type"
	StateAwaitingPhotoBefore state.State = "awaiting_photo_before"
	StateChoosingAction      state.State = "choosing_action"
	StateAwaitingTaskPick    state.State = "awaiting_task_pick"
	StateAwaitingPhotoAfter  state.State = "awaiting_photo_after"
)

// States lists every conversation state, for FSM handler registration.
func States() []state.State {
	return []state.State{
		StateAwaitingPhone,
		StateAwaitingFullName,
		StateAwaitingHouse,
		StateAwaitingAddress,
		StateConfirmingAddress,
		StateAwaitingWorkType,
		StateAwaitingPhotoBefore,
		StateChoosingAction,
		StateAwaitingTaskPick,
		StateAwaitingPhotoAfter,
	}
}
