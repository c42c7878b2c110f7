package permissions

import api "github.com/OvyFlash/telegram-bot-api"

// IsAdmin treats the chat creator and every administrator as an admin,
// regardless of their individual rights.
func IsAdmin(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// Username returns the @-handle of an admin for notices, or an empty string
// for accounts without one and for bots.
func Username(member api.ChatMember) string {
	if member.User == nil || member.User.IsBot || member.User.UserName == "" {
		return ""
	}
	return "@" + member.User.UserName
}
