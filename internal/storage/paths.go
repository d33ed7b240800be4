package storage

import "fmt"

// RegisteredChatsPath holds the list of chats the bot runs events in.
const RegisteredChatsPath = "/registered_chats"

// ChatMembersCountPath holds the chat's expected participant count.
func ChatMembersCountPath(chatID int64) string {
	return fmt.Sprintf("/%d_chat_members_count", chatID)
}

// ParticipatedMembersPath holds the chat's poll answers.
func ParticipatedMembersPath(chatID int64) string {
	return fmt.Sprintf("/%d_participated_members", chatID)
}

// RegisteredMembersPath holds the chat's completed profiles.
func RegisteredMembersPath(chatID int64) string {
	return fmt.Sprintf("/%d_registered_members", chatID)
}

// DrawnPath marks a chat whose draw already ran.
func DrawnPath(chatID int64) string {
	return fmt.Sprintf("/%d_drawn", chatID)
}
