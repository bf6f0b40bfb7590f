package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// Discord message limits for components.
const (
	buttonsPerRow = 5
	maxRows       = 5
)

// Discord implements Gateway over a discordgo session.
type Discord struct {
	session *discordgo.Session
	logger  *zap.Logger
}

// NewDiscord wraps an opened or unopened session.
func NewDiscord(session *discordgo.Session, logger *zap.Logger) *Discord {
	return &Discord{session: session, logger: logger.Named("discord")}
}

// Session exposes the underlying session for handler registration.
func (d *Discord) Session() *discordgo.Session {
	return d.session
}

// Ready reports whether the gateway connection has delivered its initial state.
func (d *Discord) Ready() bool {
	return d.session != nil && d.session.DataReady
}

func (d *Discord) CreateChannel(ctx context.Context, guildID, name, categoryID string, overwrites []PermissionOverwrite) (ChannelRef, error) {
	ch, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             categoryID,
		PermissionOverwrites: toDiscordOverwrites(guildID, d.selfID(), overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return ChannelRef{}, classify(err)
	}
	return channelRef(ch), nil
}

func (d *Discord) EditChannel(ctx context.Context, channelID string, overwrites []PermissionOverwrite, name string) error {
	edit := &discordgo.ChannelEdit{Name: name}
	if overwrites != nil {
		ch, err := d.ResolveChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return apperrors.NewNotFound("channel", map[string]any{"channel_id": channelID})
		}
		edit.PermissionOverwrites = toDiscordOverwrites(ch.GuildID, d.selfID(), overwrites)
	}
	_, err := d.session.ChannelEditComplex(channelID, edit, discordgo.WithContext(ctx))
	return classify(err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID, text string, buttons []Button) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    text,
		Components: toComponents(buttons),
	}, discordgo.WithContext(ctx))
	return classify(err)
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed Embed) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}, discordgo.WithContext(ctx))
	return classify(err)
}

func (d *Discord) ResolveChannel(ctx context.Context, channelID string) (*ChannelRef, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		ref := channelRef(ch)
		return &ref, nil
	}
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	ref := channelRef(ch)
	return &ref, nil
}

func (d *Discord) ResolveRole(ctx context.Context, guildID, roleID string) (*RoleRef, error) {
	if role, err := d.session.State.Role(guildID, roleID); err == nil {
		return &RoleRef{ID: role.ID, GuildID: guildID, Name: role.Name}, nil
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return &RoleRef{ID: role.ID, GuildID: guildID, Name: role.Name}, nil
		}
	}
	return nil, nil
}

func (d *Discord) ResolveMember(ctx context.Context, guildID, userID string) (*MemberRef, error) {
	if _, err := d.session.State.Member(guildID, userID); err == nil {
		return &MemberRef{GuildID: guildID, UserID: userID}, nil
	}
	if _, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx)); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &MemberRef{GuildID: guildID, UserID: userID}, nil
}

func (d *Discord) TimeoutMember(ctx context.Context, member MemberRef, until time.Time, reason string) error {
	until = until.UTC()
	err := d.session.GuildMemberTimeout(member.GuildID, member.UserID, &until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return classify(err)
}

func (d *Discord) ListGuilds(ctx context.Context) ([]GuildRef, error) {
	d.session.State.RLock()
	defer d.session.State.RUnlock()

	guilds := make([]GuildRef, 0, len(d.session.State.Guilds))
	for _, g := range d.session.State.Guilds {
		guilds = append(guilds, GuildRef{ID: g.ID, Name: g.Name})
	}
	return guilds, nil
}

func (d *Discord) selfID() string {
	if d.session == nil || d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func channelRef(ch *discordgo.Channel) ChannelRef {
	return ChannelRef{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name, Kind: channelKind(ch.Type)}
}

func channelKind(t discordgo.ChannelType) ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildCategory:
		return ChannelCategory
	case discordgo.ChannelTypeGuildText:
		return ChannelText
	default:
		return ChannelOther
	}
}

func toDiscordPermissions(p Permission) int64 {
	var out int64
	if p&PermissionViewChannel != 0 {
		out |= discordgo.PermissionViewChannel
	}
	if p&PermissionSendMessages != 0 {
		out |= discordgo.PermissionSendMessages
	}
	if p&PermissionReadHistory != 0 {
		out |= discordgo.PermissionReadMessageHistory
	}
	return out
}

// toDiscordOverwrites maps symbolic targets: the everyone role shares the
// guild's ID, and self is the bot user. Self entries are dropped when the
// bot user is not known yet.
func toDiscordOverwrites(guildID, selfID string, overwrites []PermissionOverwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		entry := &discordgo.PermissionOverwrite{
			Allow: toDiscordPermissions(ow.Allow),
			Deny:  toDiscordPermissions(ow.Deny),
		}
		switch ow.Kind {
		case TargetEveryone:
			entry.ID = guildID
			entry.Type = discordgo.PermissionOverwriteTypeRole
		case TargetSelf:
			if selfID == "" {
				continue
			}
			entry.ID = selfID
			entry.Type = discordgo.PermissionOverwriteTypeMember
		case TargetMember:
			entry.ID = ow.ID
			entry.Type = discordgo.PermissionOverwriteTypeMember
		case TargetRole:
			entry.ID = ow.ID
			entry.Type = discordgo.PermissionOverwriteTypeRole
		}
		out = append(out, entry)
	}
	return out
}

func toButtonStyle(s ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case ButtonSuccess:
		return discordgo.SuccessButton
	case ButtonDanger:
		return discordgo.DangerButton
	case ButtonSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

// toComponents lays buttons out five per row. Buttons past the platform's
// 25-button limit are dropped.
func toComponents(buttons []Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	if len(buttons) > buttonsPerRow*maxRows {
		buttons = buttons[:buttonsPerRow*maxRows]
	}
	rows := make([]discordgo.MessageComponent, 0, (len(buttons)+buttonsPerRow-1)/buttonsPerRow)
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    toButtonStyle(b.Style),
				CustomID: b.CustomID,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// classify keeps API rejections as they are and reports transport failures
// as GATEWAY_UNAVAILABLE.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewGatewayUnavailable(err)
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownUser:
			return true
		}
	}
	return false
}
