package backend

import (
	"time"

	"taskbot/internal/recurrence"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type ChangePassword struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

type Profile struct {
	User   User    `json:"user"`
	Groups []Group `json:"groups"`
}

type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Notes     []UserNote `json:"notes"`
	Tasks     []Task     `json:"tasks"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Group struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Members   []GroupMember `json:"members"`
	Notes     []GroupNote   `json:"notes"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type Task struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	TaskType      recurrence.Cadence `json:"taskType"`
	LastCompleted *time.Time         `json:"lastCompleted,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Snapshot returns the part of the task the availability rules look at.
// The wire cadence is matched case-insensitively; anything unknown is kept
// as-is and therefore never available.
func (t Task) Snapshot() recurrence.Snapshot {
	c, ok := recurrence.ParseCadence(string(t.TaskType))
	if !ok {
		c = t.TaskType
	}
	return recurrence.Snapshot{Cadence: c, LastCompletedAt: t.LastCompleted}
}

type UserNote struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Contents  string    `json:"contents"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type GroupNote struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Contents  string      `json:"contents"`
	Author    GroupMember `json:"author"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type GroupMember struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewTask is the body of a task creation request.
type NewTask struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	TaskType    recurrence.Cadence `json:"taskType"`
}

// TaskUpdate carries the fields to change; nil fields are left alone.
type TaskUpdate struct {
	Title         *string             `json:"title,omitempty"`
	Description   *string             `json:"description,omitempty"`
	TaskType      *recurrence.Cadence `json:"taskType,omitempty"`
	LastCompleted *time.Time          `json:"lastCompleted,omitempty"`
}

type UserUpdate struct {
	Username string `json:"username,omitempty"`
}

type NoteInput struct {
	Title    string `json:"title"`
	Contents string `json:"contents"`
}

type groupInput struct {
	Name string `json:"name"`
}

type membership struct {
	GroupID string `json:"groupId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
