package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/config"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/logging"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/services"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/sentry-go"
)

const (
	commandReport      = "report"
	commandListReports = "list_reports"

	interactionTimeout = 10 * time.Second
)

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: commandReport, Description: "File a report against a member"},
		{Name: commandListReports, Description: "List all reports (support staff only)"},
	}
}

// Bot routes Discord interactions to the report service.
type Bot struct {
	session Session
	reports *services.ReportService
	cfg     *config.Config
}

func NewBot(session Session, reports *services.ReportService, cfg *config.Config) *Bot {
	return &Bot{session: session, reports: reports, cfg: cfg}
}

// Run attaches the bot to s, opens the gateway connection and blocks until ctx
// is cancelled.
func Run(ctx context.Context, s *discordgo.Session, bot *Bot) error {
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		bot.OnReady(ctx, r)
	})
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		bot.HandleInteraction(ctx, i)
	})

	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	<-ctx.Done()

	slog.Info("closing discord session")
	if err := s.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

// OnReady registers the slash commands and sets the streaming presence.
// Commands are scoped to DISCORD_GUILD_ID when it is set, so they show up
// immediately there instead of after global propagation.
func (b *Bot) OnReady(ctx context.Context, r *discordgo.Ready) {
	appID := ""
	if r.Application != nil {
		appID = r.Application.ID
	}
	if appID == "" && r.User != nil {
		appID = r.User.ID
	}

	username := ""
	if r.User != nil {
		username = r.User.Username
	}
	slog.Info("discord session ready", "user", username, "guilds", len(r.Guilds))

	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, commands(), discordgo.WithContext(ctx))
	if err != nil {
		slog.Error("command registration failed", "guild_id", b.cfg.GuildID, "error", err)
		sentry.CaptureException(err)
	} else {
		slog.Info("commands registered", "count", len(registered), "guild_id", b.cfg.GuildID)
	}

	if err := b.session.UpdateStreamingStatus(0, b.cfg.StatusName, b.cfg.StatusURL); err != nil {
		slog.Warn("presence update failed", "error", err)
	}
}

// HandleInteraction dispatches a single interaction. Each one gets its own
// trace ID in the logs.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(ctx, interactionTimeout)
	defer cancel()
	ctx, log := logging.WithTrace(ctx, "interaction_id", i.ID)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch name := i.ApplicationCommandData().Name; name {
		case commandReport:
			b.respond(ctx, i, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseModal,
				Data: reportModal(),
			})
		case commandListReports:
			b.listReports(ctx, i)
		default:
			log.Warn("unknown command", "command", name)
		}

	case discordgo.InteractionMessageComponent:
		action, id, ok := parseCustomID(i.MessageComponentData().CustomID)
		if !ok || id == 0 {
			log.Warn("unknown component", "custom_id", i.MessageComponentData().CustomID)
			return
		}
		switch action {
		case actionClaim:
			b.claim(ctx, i, id)
		case actionClose:
			b.openCloseForm(ctx, i, id)
		default:
			log.Warn("unknown component action", "action", action)
		}

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		action, id, ok := parseCustomID(data.CustomID)
		if !ok {
			log.Warn("unknown modal", "custom_id", data.CustomID)
			return
		}
		values := modalValues(data.Components)
		switch {
		case action == actionSubmit:
			b.submit(ctx, i, values)
		case action == actionCloseModal && id > 0:
			b.close(ctx, i, id, values[inputClosingReason])
		default:
			log.Warn("unknown modal action", "action", action)
		}
	}
}

func (b *Bot) submit(ctx context.Context, i *discordgo.InteractionCreate, values map[string]string) {
	userID, _ := actor(i)
	report, err := b.reports.Submit(ctx, services.SubmitInput{
		TargetUserID: values[inputTargetUserID],
		Reason:       values[inputReason],
		ReporterID:   userID,
	})
	if err != nil {
		b.fail(ctx, i, err)
		return
	}
	b.reply(ctx, i, fmt.Sprintf("✅ Report #%d submitted!", report.ID))
}

func (b *Bot) listReports(ctx context.Context, i *discordgo.InteractionCreate) {
	if !b.isSupport(i) {
		b.reply(ctx, i, "❌ You do not have permission to view reports.")
		return
	}

	reports, err := b.reports.List(ctx, "")
	if err != nil {
		b.fail(ctx, i, err)
		return
	}
	if len(reports) == 0 {
		b.reply(ctx, i, "No reports yet.")
		return
	}

	b.respond(ctx, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{listEmbed(dto.NewReportViews(reports))},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) claim(ctx context.Context, i *discordgo.InteractionCreate, id int64) {
	if !b.isSupport(i) {
		b.reply(ctx, i, "❌ You do not have permission to handle reports.")
		return
	}

	userID, _ := actor(i)
	report, err := b.reports.Claim(ctx, id, userID)
	if err != nil {
		b.fail(ctx, i, err)
		return
	}

	b.updateMessage(ctx, i, report)
	b.followup(ctx, i, fmt.Sprintf("✅ %s claimed report #%d.", mention(userID), id))
}

func (b *Bot) openCloseForm(ctx context.Context, i *discordgo.InteractionCreate, id int64) {
	if !b.isSupport(i) {
		b.reply(ctx, i, "❌ You do not have permission to handle reports.")
		return
	}

	userID, _ := actor(i)
	if _, err := b.reports.CheckCloser(ctx, id, userID); err != nil {
		b.fail(ctx, i, err)
		return
	}

	b.respond(ctx, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: closeModal(id),
	})
}

func (b *Bot) close(ctx context.Context, i *discordgo.InteractionCreate, id int64, reason string) {
	if !b.isSupport(i) {
		b.reply(ctx, i, "❌ You do not have permission to handle reports.")
		return
	}

	userID, _ := actor(i)
	report, err := b.reports.Close(ctx, id, userID, reason)
	if err != nil {
		b.fail(ctx, i, err)
		return
	}

	// The form was opened from the log message, so the response can replace
	// it. Without a source message there is nothing to update.
	if i.Message == nil {
		b.reply(ctx, i, "✅ Report closed!")
		return
	}
	b.updateMessage(ctx, i, report)
	b.followup(ctx, i, "✅ Report closed!")
}

// updateMessage re-renders the log message from stored state.
func (b *Bot) updateMessage(ctx context.Context, i *discordgo.InteractionCreate, r models.Report) {
	v := dto.NewReportView(r)
	b.respond(ctx, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{reportEmbed(v)},
			Components: reportComponents(v),
		},
	})
}

// fail tells the member what went wrong. Internal errors are logged, sent to
// Sentry and replaced by a generic message.
func (b *Bot) fail(ctx context.Context, i *discordgo.InteractionCreate, err error) {
	if msg, ok := userMessage(err, b.cfg.ReportCooldown); ok {
		b.reply(ctx, i, msg)
		return
	}

	logging.FromContext(ctx).Error("interaction failed", "error", err)
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("interaction_id", i.ID)
	hub.CaptureException(err)

	b.reply(ctx, i, "❌ Something went wrong. Please try again later.")
}

func userMessage(err error, cooldown time.Duration) (string, bool) {
	var rl *services.RateLimitedError
	switch {
	case errors.As(err, &rl):
		retry := rl.RetryAfter.Round(time.Second)
		if cooldown <= 0 {
			return fmt.Sprintf("❌ Please wait %s before filing another report.", retry), true
		}
		return fmt.Sprintf("❌ You can only file one report every %s. Try again in %s.", cooldown, retry), true
	case errors.Is(err, services.ErrValidation):
		msg := err.Error()
		if _, detail, found := strings.Cut(msg, ": "); found {
			msg = detail
		}
		return "❌ " + upperFirst(msg) + ".", true
	case errors.Is(err, services.ErrAlreadyClaimed):
		return "❗ This report is already being handled by another staff member.", true
	case errors.Is(err, services.ErrNotClaimant):
		return "❌ Only the staff member who claimed this report can close it.", true
	case errors.Is(err, services.ErrAlreadyClosed):
		return "❌ This report has already been closed.", true
	case errors.Is(err, store.ErrNotFound):
		return "❌ Report not found.", true
	}
	return "", false
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *Bot) reply(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	b.respond(ctx, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) respond(ctx context.Context, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := b.session.InteractionRespond(i.Interaction, resp, discordgo.WithContext(ctx)); err != nil {
		logging.FromContext(ctx).Error("interaction response failed", "error", err)
	}
}

func (b *Bot) followup(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	_, err := b.session.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Error("followup message failed", "error", err)
	}
}

func (b *Bot) isSupport(i *discordgo.InteractionCreate) bool {
	_, roles := actor(i)
	return b.cfg.SupportRoleID != "" && slices.Contains(roles, b.cfg.SupportRoleID)
}

// actor returns the acting member and their roles. Interactions outside a
// guild carry no roles.
func actor(i *discordgo.InteractionCreate) (string, []string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, i.Member.Roles
	}
	if i.User != nil {
		return i.User.ID, nil
	}
	return "", nil
}
