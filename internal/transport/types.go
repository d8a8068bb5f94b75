// Package transport holds the chat-platform neutral types shared by the
// Telegram adapter, the router and the reset notifier.
package transport

import "context"

// ChatTarget addresses a chat, optionally a forum topic within it. For a
// private chat ChatID equals the user id.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef points at a message that was sent or received.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) Chat() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is one inbound event. Exactly one of Message and Callback is set,
// matching Kind.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// Origin returns the chat and sender of the update.
func (u Update) Origin() (ChatTarget, int64) {
	switch {
	case u.Message != nil:
		return u.Message.Ref().Chat(), u.Message.FromID
	case u.Callback != nil:
		return u.Callback.Ref().Chat(), u.Callback.FromID
	}
	return ChatTarget{}, 0
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int
	FromID       int64
	FromUsername string
	Text         string
	// Private is true for a one-to-one chat with the bot. Commands carrying
	// passwords are refused elsewhere.
	Private bool
}

func (m *Message) Ref() MessageRef {
	return MessageRef{ChatID: m.ChatID, ThreadID: m.ThreadID, MessageID: m.ID}
}

// Callback is an inline-button press. Data is "<prefix>:<payload>".
type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

func (c *Callback) Ref() MessageRef {
	return MessageRef{ChatID: c.ChatID, ThreadID: c.ThreadID, MessageID: c.MessageID}
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyMarkupAdapter carries adapter-specific markup; the Telegram
	// adapter expects *telebot.ReplyMarkup.
	ReplyMarkupAdapter any
}

// Sender delivers text. Reset notifications only need this half.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// Adapter is a full chat transport: inbound updates plus message upkeep.
type Adapter interface {
	Sender

	// Start begins delivering updates to out and returns once polling is
	// running.
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters that can publish a command
// menu (Telegram's "/" list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
