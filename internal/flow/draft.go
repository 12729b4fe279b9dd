package flow

import "github.com/nusakov/remontbot/core/telegram/state"

// Draft is the live session of one conversation: everything collected so far
// for the task being filled in. It is created on first contact, passed by
// reference through every transition, and destroyed on completion or cancel.
type Draft struct {
	UserID int64
	State  state.State

	Phone    string
	FullName string

	House     string
	Addresses []string
	Address   string
	WorkType  string
	WorkData  string

	ReportDir   string
	PhotoBefore string
	PhotoAfter  string
}

// ResetTask clears the task in progress while keeping identity and contact
// details; used by "start new".
func (d *Draft) ResetTask() {
	d.House = ""
	d.Addresses = nil
	d.Address = ""
	d.WorkType = ""
	d.WorkData = ""
	d.ReportDir = ""
	d.PhotoBefore = ""
	d.PhotoAfter = ""
}

// End terminates the session: clears the task and drops the state to idle so
// the manager discards the draft.
func (d *Draft) End() {
	d.ResetTask()
	d.State = state.StateIdle
}
