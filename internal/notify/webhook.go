// Package notify provides notification services for mining events.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberia-to/uhash/internal/storage"
	"github.com/cyberia-to/uhash/internal/util"
)

// WebhookConfig holds webhook configuration
type WebhookConfig struct {
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramURL  string `mapstructure:"telegram_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
	Enabled      bool   `mapstructure:"enabled"`
	MinerName    string
}

// Retry configuration
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier handles sending notifications
type Notifier struct {
	cfg    *WebhookConfig
	client *http.Client
}

// NewNotifier creates a new notifier
func NewNotifier(cfg *WebhookConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyProofFound sends notifications when the miner finds a valid proof.
func (n *Notifier) NotifyProofFound(proof *storage.FoundProof, difficulty uint32) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordProofNotification(proof, difficulty)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramProofNotification(proof, difficulty)
	}
}

// NotifySubmissionFailed sends notifications when a found proof fails to
// reach the chain, so an operator can check the upstream without watching
// logs.
func (n *Notifier) NotifySubmissionFailed(proof *storage.FoundProof, reason string) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordSubmissionFailedNotification(proof, reason)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramSubmissionFailedNotification(proof, reason)
	}
}

// NotifyUpstreamDegraded sends notifications when every configured upstream
// has gone unhealthy and mining can no longer refresh its seed/difficulty.
func (n *Notifier) NotifyUpstreamDegraded(failedCount, totalCount int) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordUpstreamNotification(failedCount, totalCount)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramUpstreamNotification(failedCount, totalCount)
	}
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// sendDiscordProofNotification sends a proof-found notification to Discord
func (n *Notifier) sendDiscordProofNotification(proof *storage.FoundProof, difficulty uint32) {
	embed := DiscordEmbed{
		Title:       "Proof Found!",
		Description: fmt.Sprintf("**%s** found a valid proof", n.cfg.MinerName),
		Color:       0x00FF00, // Green
		Fields: []DiscordField{
			{Name: "Address", Value: truncateAddress(proof.Address), Inline: true},
			{Name: "Nonce", Value: fmt.Sprintf("%d", proof.Nonce), Inline: true},
			{Name: "Difficulty", Value: fmt.Sprintf("%d", difficulty), Inline: true},
			{Name: "Hash", Value: truncateHash(proof.Hash), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: n.cfg.MinerName,
		},
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{embed},
	}

	n.sendDiscordMessage(msg)
}

// sendDiscordSubmissionFailedNotification warns that a found proof could
// not be submitted to the upstream.
func (n *Notifier) sendDiscordSubmissionFailedNotification(proof *storage.FoundProof, reason string) {
	embed := DiscordEmbed{
		Title:       "Proof Submission Failed",
		Description: fmt.Sprintf("**%s** could not submit a found proof", n.cfg.MinerName),
		Color:       0xFF0000, // Red
		Fields: []DiscordField{
			{Name: "Nonce", Value: fmt.Sprintf("%d", proof.Nonce), Inline: true},
			{Name: "Reason", Value: reason, Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: n.cfg.MinerName,
		},
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{embed},
	}

	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordUpstreamNotification warns that every upstream is unhealthy.
func (n *Notifier) sendDiscordUpstreamNotification(failedCount, totalCount int) {
	embed := DiscordEmbed{
		Title:       "Upstream Degraded",
		Description: fmt.Sprintf("**%s** has lost its node connection", n.cfg.MinerName),
		Color:       0xFFA500, // Orange
		Fields: []DiscordField{
			{Name: "Unhealthy", Value: fmt.Sprintf("%d / %d", failedCount, totalCount), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: n.cfg.MinerName,
		},
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{embed},
	}

	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordMessage sends a message to Discord webhook (with retry)
func (n *Notifier) sendDiscordMessage(msg DiscordMessage) {
	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordMessageWithRetry sends a message to Discord with exponential backoff retry
func (n *Notifier) sendDiscordMessageWithRetry(msg DiscordMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Discord message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, 4s
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(n.cfg.DiscordURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited - wait longer
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Discord notification after %d attempts: %v", MaxRetries, lastErr)
	}
}

// TelegramMessage represents a Telegram bot message
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendTelegramProofNotification sends a proof-found notification to Telegram
func (n *Notifier) sendTelegramProofNotification(proof *storage.FoundProof, difficulty uint32) {
	text := fmt.Sprintf(
		"*Proof Found!*\n\n"+
			"Address: `%s`\n"+
			"Nonce: `%d`\n"+
			"Difficulty: `%d`\n"+
			"Hash: `%s`",
		truncateAddress(proof.Address), proof.Nonce, difficulty, truncateHash(proof.Hash),
	)

	n.sendTelegramMessage(text)
}

// sendTelegramSubmissionFailedNotification warns that a found proof could
// not be submitted to the upstream.
func (n *Notifier) sendTelegramSubmissionFailedNotification(proof *storage.FoundProof, reason string) {
	text := fmt.Sprintf(
		"*Proof Submission Failed*\n\n"+
			"Nonce: `%d`\n"+
			"Reason: `%s`",
		proof.Nonce, reason,
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramUpstreamNotification warns that every upstream is unhealthy.
func (n *Notifier) sendTelegramUpstreamNotification(failedCount, totalCount int) {
	text := fmt.Sprintf(
		"*Upstream Degraded*\n\n"+
			"Unhealthy: `%d / %d`",
		failedCount, totalCount,
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessage sends a message via Telegram Bot API (with retry)
func (n *Notifier) sendTelegramMessage(text string) {
	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessageWithRetry sends a message via Telegram with exponential backoff retry
func (n *Notifier) sendTelegramMessageWithRetry(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBot)

	msg := TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Telegram message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Telegram notification after %d attempts: %v", MaxRetries, lastErr)
	}
}

// truncateAddress returns a shortened address for display
func truncateAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

// truncateHash returns a shortened hash for display
func truncateHash(hash string) string {
	if len(hash) <= 20 {
		return hash
	}
	return hash[:10] + "..." + hash[len(hash)-8:]
}
