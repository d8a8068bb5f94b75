// Package storage persists the small amount of client-side state taskbot needs.
//
// It currently covers:
//   - Session token pairs, keyed by session ("cli", "tg:<user id>")
//   - Audit log appends (logins, completions, task creation)
//   - Reminder dedup markers so a reset is announced once per boundary
package storage
