package router

import (
	"strings"
)

// helpText renders plain-text help for all commands or for one.
func (r *Router) helpText(args []string) string {
	r.mu.RLock()
	list := r.list
	cmds := r.cmds
	r.mu.RUnlock()

	if len(args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		c, ok := cmds[name]
		if !ok {
			return "❓ unknown command /" + name + ". Try /help"
		}
		lines := []string{"📚 /" + c.Name}
		if c.Description != "" {
			lines = append(lines, c.Description)
		}
		if c.Usage != "" {
			lines = append(lines, "", "Usage: "+c.Usage)
		}
		if len(c.Aliases) > 0 {
			lines = append(lines, "Aliases: /"+strings.Join(c.Aliases, ", /"))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 owner only")
		}
		if c.PrivateOnly {
			lines = append(lines, "🔐 private chat only")
		}
		return strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("📚 Commands\n")
	for _, c := range list {
		prefix := "• "
		if c.Access == AccessOwnerOnly {
			prefix = "• 🔒 "
		}
		b.WriteString(prefix + "/" + c.Name)
		if c.Description != "" {
			b.WriteString(" - " + c.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nType /help <command> for details.")
	return b.String()
}
