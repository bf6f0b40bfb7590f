// Package gateway defines the chat platform capabilities the ticket engine
// consumes and a Discord implementation of them.
package gateway

import (
	"context"
	"time"
)

// Permission is a platform-neutral channel permission bit.
type Permission uint8

const (
	PermissionViewChannel Permission = 1 << iota
	PermissionSendMessages
	PermissionReadHistory
)

// TargetKind says who a permission overwrite applies to.
type TargetKind uint8

const (
	// TargetEveryone is the guild's default role.
	TargetEveryone TargetKind = iota
	// TargetSelf is the bot's own member.
	TargetSelf
	TargetMember
	TargetRole
)

// PermissionOverwrite grants or denies permissions on one channel. ID is
// only read for TargetMember and TargetRole.
type PermissionOverwrite struct {
	Kind  TargetKind
	ID    string
	Allow Permission
	Deny  Permission
}

// ButtonStyle selects button colouring.
type ButtonStyle uint8

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSuccess
	ButtonDanger
	ButtonSecondary
)

// Button is an interactive component attached to a message.
type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
}

// Embed colours used in log notifications.
const (
	ColorGreen = 0x2ECC71
	ColorRed   = 0xE74C3C
)

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
}

// ChannelKind distinguishes container channels from text channels.
type ChannelKind uint8

const (
	ChannelText ChannelKind = iota
	ChannelCategory
	ChannelOther
)

// ChannelRef identifies a channel on the platform.
type ChannelRef struct {
	ID      string
	GuildID string
	Name    string
	Kind    ChannelKind
}

// Mention renders the channel as a clickable reference.
func (c ChannelRef) Mention() string {
	return ChannelMention(c.ID)
}

// RoleRef identifies a role.
type RoleRef struct {
	ID      string
	GuildID string
	Name    string
}

// Mention renders the role as a ping.
func (r RoleRef) Mention() string {
	return RoleMention(r.ID)
}

// MemberRef identifies a user's membership in one guild.
type MemberRef struct {
	GuildID string
	UserID  string
}

// Mention renders the member as a ping.
func (m MemberRef) Mention() string {
	return UserMention(m.UserID)
}

// GuildRef identifies a guild the bot belongs to.
type GuildRef struct {
	ID   string
	Name string
}

// Gateway is the set of platform operations the ticket engine relies on.
// Resolve* methods return nil with no error when the target does not exist.
type Gateway interface {
	CreateChannel(ctx context.Context, guildID, name, categoryID string, overwrites []PermissionOverwrite) (ChannelRef, error)
	// EditChannel replaces overwrites when non-nil and renames when name is non-empty.
	EditChannel(ctx context.Context, channelID string, overwrites []PermissionOverwrite, name string) error
	SendMessage(ctx context.Context, channelID, text string, buttons []Button) error
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
	ResolveChannel(ctx context.Context, channelID string) (*ChannelRef, error)
	ResolveRole(ctx context.Context, guildID, roleID string) (*RoleRef, error)
	ResolveMember(ctx context.Context, guildID, userID string) (*MemberRef, error)
	TimeoutMember(ctx context.Context, member MemberRef, until time.Time, reason string) error
	ListGuilds(ctx context.Context) ([]GuildRef, error)
}

// UserMention renders a user ID as a ping.
func UserMention(userID string) string { return "<@" + userID + ">" }

// RoleMention renders a role ID as a ping.
func RoleMention(roleID string) string { return "<@&" + roleID + ">" }

// ChannelMention renders a channel ID as a link.
func ChannelMention(channelID string) string { return "<#" + channelID + ">" }
