// Package reminder fires a callback at every reset boundary of the enabled
// cadences. Boundaries come from UTC cron entries whose firing times match
// recurrence.NextReset.
package reminder
