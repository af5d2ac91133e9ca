// Package discord adapts the report lifecycle to Discord: slash commands,
// forms, buttons and the two audit channels.
package discord

import "github.com/bwmarrin/discordgo"

// Session is the part of *discordgo.Session the bot uses. Tests swap in a
// recording fake.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	UpdateStreamingStatus(idle int, name string, url string) error
}

var _ Session = (*discordgo.Session)(nil)
