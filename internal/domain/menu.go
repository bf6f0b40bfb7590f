package domain

import "encoding/json"

// MenuButton binds a button label to the role pinged when it is used.
type MenuButton struct {
	Label  string `json:"label"`
	RoleID string `json:"role_id"`
}

// MenuConfig is the ticket creation menu shown to users.
type MenuConfig struct {
	Buttons    []MenuButton `json:"buttons"`
	CategoryID string       `json:"category_id"`
}

// UnmarshalJSON accepts role IDs written as numbers.
func (b *MenuButton) UnmarshalJSON(data []byte) error {
	var doc struct {
		Label  string    `json:"label"`
		RoleID Snowflake `json:"role_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	b.Label = doc.Label
	b.RoleID = string(doc.RoleID)
	return nil
}

// UnmarshalJSON accepts a category ID written as a number.
func (m *MenuConfig) UnmarshalJSON(data []byte) error {
	var doc struct {
		Buttons    []MenuButton `json:"buttons"`
		CategoryID Snowflake    `json:"category_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	m.Buttons = doc.Buttons
	m.CategoryID = string(doc.CategoryID)
	return nil
}

// Button returns the button at index, if any.
func (m MenuConfig) Button(index int) (MenuButton, bool) {
	if index < 0 || index >= len(m.Buttons) {
		return MenuButton{}, false
	}
	return m.Buttons[index], true
}

// Actor is the chat user invoking a command or button.
type Actor struct {
	UserID   string
	Username string
	GuildID  string
	IsAdmin  bool
}

// Opener returns the actor as a ticket opener.
func (a Actor) Opener() Opener {
	return Opener{UserID: a.UserID, Username: a.Username}
}
