// Package tgui has small Telegram UI helpers: inline keyboard builders and
// callback data packing ("prefix:payload") within Telegram's size limit.
package tgui
