package discord

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/dto"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/bwmarrin/discordgo"
)

const (
	colorOpen    = 0xE74C3C
	colorClaimed = 0xF1C40F
	colorClosed  = 0x2ECC71
	colorList    = 0x3498DB
)

// Discord embed limits.
const (
	maxEmbedFields    = 25
	maxFieldValue     = 1024
	listEmbedBudget   = 5500
	listReasonPreview = 200
	maxIDPreview      = 64
)

const (
	customIDSeparator = ":"
	customIDNamespace = "report"

	actionClaim      = "claim"
	actionClose      = "close"
	actionCloseModal = "close_modal"
	actionSubmit     = "submit"

	inputTargetUserID  = "user_id"
	inputReason        = "reason"
	inputClosingReason = "closing_reason"
)

func customID(action string, id int64) string {
	return customIDNamespace + customIDSeparator + action + customIDSeparator + strconv.FormatInt(id, 10)
}

// parseCustomID splits "report:<action>[:<id>]". id is 0 when absent.
func parseCustomID(raw string) (action string, id int64, ok bool) {
	parts := strings.Split(raw, customIDSeparator)
	if len(parts) < 2 || parts[0] != customIDNamespace {
		return "", 0, false
	}
	if len(parts) == 2 {
		return parts[1], 0, true
	}
	if len(parts) != 3 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return parts[1], id, true
}

func mention(userID string) string {
	if userID == "" {
		return "-"
	}
	return "<@" + userID + ">"
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// reportEmbed renders the audit message for a report in its current state.
func reportEmbed(v dto.ReportView) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🚨 New report #%d", v.ID),
		Color: colorOpen,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User ID", Value: truncate(v.TargetUserID, maxFieldValue)},
			{Name: "Reason", Value: truncate(v.Reason, maxFieldValue)},
			{Name: "Reported by", Value: mention(v.ReporterID)},
			{Name: "Status", Value: v.StatusLabel, Inline: true},
		},
	}

	if v.ClaimedBy != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Claimed by", Value: mention(v.ClaimedBy), Inline: true})
	}

	switch v.Status {
	case models.StatusClaimed:
		embed.Color = colorClaimed
	case models.StatusClosed:
		embed.Title = fmt.Sprintf("Report #%d closed", v.ID)
		embed.Color = colorClosed
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Closed by", Value: mention(v.ResolvedBy), Inline: true})
		if v.CloseReason != "" {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Closing reason", Value: truncate(v.CloseReason, maxFieldValue)})
		}
	}
	return embed
}

// closedEmbed is posted to the closed-reports log.
func closedEmbed(v dto.ReportView) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Report #%d closed", v.ID),
		Description: fmt.Sprintf("**Closing reason**: %s\n**Closed by**: %s\n**Reported user**: %s\n**Reported by**: %s",
			truncate(v.CloseReason, maxFieldValue), mention(v.ResolvedBy), truncate(v.TargetUserID, maxIDPreview), mention(v.ReporterID)),
		Color: colorClosed,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Closed by staff member " + v.ResolvedBy,
		},
	}
}

func reportComponents(v dto.ReportView) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Claim report",
					Style:    discordgo.PrimaryButton,
					CustomID: customID(actionClaim, v.ID),
					Disabled: v.Status != models.StatusOpen,
				},
				discordgo.Button{
					Label:    "Close report",
					Style:    discordgo.DangerButton,
					CustomID: customID(actionClose, v.ID),
					Disabled: v.Status == models.StatusClosed,
				},
			},
		},
	}
}

// listEmbed shows the newest reports first. Older reports that do not fit in
// the field count or the embed size are summarized in the footer.
func listEmbed(views []dto.ReportView) *discordgo.MessageEmbed {
	sorted := make([]dto.ReportView, len(views))
	copy(sorted, views)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	embed := &discordgo.MessageEmbed{
		Title: "📜 All reports",
		Color: colorList,
	}

	size := utf8.RuneCountInString(embed.Title)
	for _, v := range sorted {
		field := &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("Report #%d", v.ID),
			Value: fmt.Sprintf("User ID: %s\nReason: %s\nStatus: %s\nClaimed by: %s\nResolved by: %s",
				truncate(v.TargetUserID, maxIDPreview), truncate(v.Reason, listReasonPreview), v.StatusLabel, mention(v.ClaimedBy), mention(v.ResolvedBy)),
		}
		fieldSize := utf8.RuneCountInString(field.Name) + utf8.RuneCountInString(field.Value)
		if len(embed.Fields) == maxEmbedFields || size+fieldSize > listEmbedBudget {
			break
		}
		embed.Fields = append(embed.Fields, field)
		size += fieldSize
	}

	if omitted := len(sorted) - len(embed.Fields); omitted > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d older reports not shown", omitted),
		}
	}
	return embed
}

func reportModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: customIDNamespace + customIDSeparator + actionSubmit,
		Title:    "File a report",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputTargetUserID,
					Label:       "User ID",
					Style:       discordgo.TextInputShort,
					Placeholder: "Digits only",
					Required:    true,
					MaxLength:   32,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputReason,
					Label:       "Reason",
					Style:       discordgo.TextInputParagraph,
					Placeholder: "Describe what happened",
					Required:    true,
					MaxLength:   maxFieldValue,
				},
			}},
		},
	}
}

func closeModal(id int64) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: customID(actionCloseModal, id),
		Title:    fmt.Sprintf("Close report #%d", id),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputClosingReason,
					Label:       "Closing reason",
					Style:       discordgo.TextInputParagraph,
					Placeholder: "What was done about this report",
					Required:    true,
					MaxLength:   maxFieldValue,
				},
			}},
		},
	}
}

// modalValues collects text input values by custom ID.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	var walk func([]discordgo.MessageComponent)
	walk = func(cs []discordgo.MessageComponent) {
		for _, c := range cs {
			switch c := c.(type) {
			case *discordgo.ActionsRow:
				walk(c.Components)
			case discordgo.ActionsRow:
				walk(c.Components)
			case *discordgo.TextInput:
				values[c.CustomID] = c.Value
			case discordgo.TextInput:
				values[c.CustomID] = c.Value
			}
		}
	}
	walk(components)
	return values
}
