package models

// RegisteredChat is a group chat in which the bot runs an event.
type RegisteredChat struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	// Messages are the ids of poll messages the bot posted in the chat.
	Messages []int `json:"messages,omitempty"`
}

// Participation is a member's answer to the event poll.
type Participation struct {
	UserID         int64 `json:"userId"`
	IsParticipates bool  `json:"isParticipates"`
}
