// Package models defines state tracking structures for the intake flow.
package models

// ChatState represents where a user currently is in the intake conversation.
type ChatState string

// Intake conversation states. StateNone means the user has no active
// conversation; StateEnded is the terminal state after a farewell or /cancel.
const (
	StateNone             ChatState = ""
	StateAwaitingPassport ChatState = "AWAITING_PASSPORT"
	StateAwaitingCarDoc   ChatState = "AWAITING_CAR_DOC"
	StateConfirmData      ChatState = "CONFIRM_DATA"
	StateConfirmPrice     ChatState = "CONFIRM_PRICE"
	StateReconfirmPrice   ChatState = "RECONFIRM_PRICE"
	StateAfterPolicy      ChatState = "AFTER_POLICY"
	StateEnded            ChatState = "ENDED"
)

// Active reports whether the state belongs to an in-progress conversation.
func (s ChatState) Active() bool {
	switch s {
	case StateNone, StateEnded:
		return false
	default:
		return true
	}
}
