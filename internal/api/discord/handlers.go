package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-warden/internal/domain"
	"github.com/spec-kit/ticket-warden/internal/gateway"
	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

func (r *Router) handleSetup(ctx context.Context, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	labelOpt, roleOpt := opts["label"], opts["role"]
	if labelOpt == nil || roleOpt == nil {
		return r.reply(i, "❌ Both label and role are required.")
	}
	label := labelOpt.StringValue()
	roleID := roleOpt.RoleValue(nil, "").ID

	button, err := r.menus.AddButton(ctx, actorFrom(i), label, roleID)
	if err != nil {
		return r.replyError(i, err)
	}
	return r.reply(i, fmt.Sprintf("✅ Added button `%s` pinging %s!", button.Label, gateway.RoleMention(button.RoleID)))
}

func (r *Router) handleCreateMenu(ctx context.Context, i *discordgo.InteractionCreate) error {
	if err := r.menus.PostMenu(ctx, actorFrom(i), i.ChannelID); err != nil {
		return r.replyError(i, err)
	}
	return r.reply(i, "✅ Ticket menu posted!")
}

func (r *Router) handleClose(ctx context.Context, i *discordgo.InteractionCreate) error {
	if err := r.tickets.CloseTicket(ctx, i.ChannelID, actorFrom(i).UserID); err != nil {
		return r.replyError(i, err)
	}
	return r.reply(i, "✅ Ticket closed!")
}

// handleOpen acknowledges first because channel creation can outlast the
// interaction response deadline.
func (r *Router) handleOpen(ctx context.Context, i *discordgo.InteractionCreate, index int) error {
	err := r.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("defer response: %w", err)
	}

	ref, err := r.menus.OpenFromButton(ctx, actorFrom(i), index)
	var content string
	if err != nil {
		content = apperrors.UserMessage(err)
	} else {
		content = "✅ Ticket created: " + ref.Mention
	}
	if _, editErr := r.api.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); editErr != nil {
		err = errors.Join(err, fmt.Errorf("edit response: %w", editErr))
	}
	if err != nil && isUserError(err) {
		r.logger.Info("ticket not opened", zap.String("user_id", actorFrom(i).UserID), zap.Error(err))
		return nil
	}
	return err
}

func (r *Router) reply(i *discordgo.InteractionCreate, content string) error {
	err := r.api.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}

// replyError shows err to the user. Errors the user caused are not
// reported further.
func (r *Router) replyError(i *discordgo.InteractionCreate, err error) error {
	replyErr := r.reply(i, apperrors.UserMessage(err))
	if isUserError(err) {
		r.logger.Info("interaction rejected", zap.String("user_id", actorFrom(i).UserID), zap.Error(err))
		return replyErr
	}
	return errors.Join(err, replyErr)
}

func isUserError(err error) bool {
	switch apperrors.ToDomainError(err).Code {
	case apperrors.CodePermissionDenied, apperrors.CodeNoButtonsConfigured, apperrors.CodeValidationFailed,
		apperrors.CodeInvalidCategory, apperrors.CodeNotFound:
		return true
	}
	return false
}

func actorFrom(i *discordgo.InteractionCreate) domain.Actor {
	actor := domain.Actor{GuildID: i.GuildID}
	if i.Member != nil {
		actor.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		if i.Member.User != nil {
			actor.UserID = i.Member.User.ID
			actor.Username = i.Member.User.Username
		}
		return actor
	}
	if i.User != nil {
		actor.UserID = i.User.ID
		actor.Username = i.User.Username
	}
	return actor
}
