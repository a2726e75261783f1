package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	colorWin     = 0x2ECC71
	colorJackpot = 0xF1C40F
)

// DiscordNotifier posts wins to a channel webhook
type DiscordNotifier struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscordNotifier creates a webhook notifier. Webhooks need no bot token.
func NewDiscordNotifier(webhookID, webhookToken string) (*DiscordNotifier, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordNotifier{session: session, id: webhookID, token: webhookToken}, nil
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Notify(ctx context.Context, w Win) error {
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{winEmbed(w)},
	}
	if _, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

func winEmbed(w Win) *discordgo.MessageEmbed {
	title := "Big win!"
	color := colorWin
	if w.Jackpot {
		title = "JACKPOT!"
		color = colorJackpot
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("<@%s> won **%d** on %s", w.PlayerID, w.Payout, w.Game),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Bet", Value: fmt.Sprintf("%d", w.Bet), Inline: true},
			{Name: "Payout", Value: fmt.Sprintf("%d", w.Payout), Inline: true},
			{Name: "Multiplier", Value: fmt.Sprintf("%.2fx", w.Multiplier), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "round " + w.RoundID},
		Timestamp: w.At.Format(time.RFC3339),
	}
}
