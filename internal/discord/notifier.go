package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/services"
	"github.com/bwmarrin/discordgo"
)

// ChannelNotifier posts lifecycle events to the report log and closed log
// channels, and keeps the report log message in step with stored state no
// matter which surface made the change.
type ChannelNotifier struct {
	session         Session
	supportRoleID   string
	reportChannelID string
	closedChannelID string
}

var _ services.Notifier = (*ChannelNotifier)(nil)

func NewChannelNotifier(session Session, supportRoleID, reportChannelID, closedChannelID string) *ChannelNotifier {
	return &ChannelNotifier{
		session:         session,
		supportRoleID:   supportRoleID,
		reportChannelID: reportChannelID,
		closedChannelID: closedChannelID,
	}
}

// ReportSubmitted pings the support role with the report and its action
// buttons. Only the support role may be mentioned.
func (n *ChannelNotifier) ReportSubmitted(ctx context.Context, r models.Report) (services.LogMessage, error) {
	v := dto.NewReportView(r)
	msg, err := n.session.ChannelMessageSendComplex(n.reportChannelID, &discordgo.MessageSend{
		Content:    "<@&" + n.supportRoleID + ">",
		Embeds:     []*discordgo.MessageEmbed{reportEmbed(v)},
		Components: reportComponents(v),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Roles: []string{n.supportRoleID},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return services.LogMessage{}, fmt.Errorf("post report %d to log channel: %w", r.ID, err)
	}

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = n.reportChannelID
	}
	return services.LogMessage{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (n *ChannelNotifier) ReportClaimed(ctx context.Context, r models.Report) error {
	return n.redraw(ctx, r)
}

func (n *ChannelNotifier) ReportClosed(ctx context.Context, r models.Report) error {
	var errs []error
	_, err := n.session.ChannelMessageSendComplex(n.closedChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{closedEmbed(dto.NewReportView(r))},
	}, discordgo.WithContext(ctx))
	if err != nil {
		errs = append(errs, fmt.Errorf("post report %d to closed log: %w", r.ID, err))
	}
	if err := n.redraw(ctx, r); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// redraw edits the report log message to match r. Reports announced before
// their message was recorded are skipped.
func (n *ChannelNotifier) redraw(ctx context.Context, r models.Report) error {
	channelID, messageID, ok := r.LogMessage()
	if !ok {
		return nil
	}

	v := dto.NewReportView(r)
	embeds := []*discordgo.MessageEmbed{reportEmbed(v)}
	components := reportComponents(v)
	_, err := n.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("update log message for report %d: %w", r.ID, err)
	}
	return nil
}
