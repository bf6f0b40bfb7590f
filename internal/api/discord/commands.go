package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Slash command names.
const (
	CommandSetup      = "setup"
	CommandCreateMenu = "create-ticket-menu"
)

var adminPermission int64 = discordgo.PermissionAdministrator

// Commands returns the application commands the bot registers on ready.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandSetup,
			Description:              "Add a button to the ticket menu",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "label",
					Description: "Button label",
					Required:    true,
					MaxLength:   80,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role pinged when a ticket is opened from this button",
					Required:    true,
				},
			},
		},
		{
			Name:                     CommandCreateMenu,
			Description:              "Post the configured ticket menu in this channel",
			DefaultMemberPermissions: &adminPermission,
		},
	}
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		out[opt.Name] = opt
	}
	return out
}
