package config

import "time"

const (
	// Callback data for inline buttons
	ActionPollYes  = "poll_yes"
	ActionPollNo   = "poll_no"
	ActionRegister = "register"
	// ActionChoosePrefix prefixes the chat id in "choose chat" buttons.
	ActionChoosePrefix = "chat_"

	// Session keys
	SessionKeyCursor    = "cursor"
	SessionKeyProfile   = "profile"
	SessionKeyFinalized = "finalized"

	// Lock key prefixes
	FinalizeLockPrefix = "lock:finalize:"
	PollLockPrefix     = "lock:poll:"

	// MinParticipants is the smallest group the pairing engine accepts.
	MinParticipants = 2

	// Phase-2 draw discipline
	MaxCollisionRedraws = 8

	DefaultLockTTL   = 10 * time.Second
	LockRetryBackoff = 50 * time.Millisecond
	LockMaxWait      = 2 * time.Second
)
