package router

import (
	"strings"

	kit "taskbot/internal/transport"
)

// sanitizeCommand converts a name into a Telegram-safe bot command,
// restricted to [a-z0-9_]{1,32}.
func sanitizeCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	last := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '_', ch == '-', ch == ' ', ch == '/':
			ch = '_'
			if last == '_' || b.Len() == 0 {
				continue
			}
		default:
			continue
		}
		b.WriteByte(ch)
		last = ch
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// buildMenu lists every command for Telegram's "/" menu. Owner-only
// commands are marked with a lock.
func buildMenu(list []Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(list))
	for _, c := range list {
		name := sanitizeCommand(c.Name)
		if name == "" {
			continue
		}
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if c.Access == AccessOwnerOnly {
			desc = "🔒 " + desc
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}
