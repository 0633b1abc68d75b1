package status

import (
	"fmt"
	"math"
	"time"

	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const maxQueryWidth = 48

type RenderOptions struct {
	Now time.Time
	// StaleAfter marks a bot whose last fetch is older than this. Zero disables it.
	StaleAfter time.Duration
}

func renderView(statuses []application.AccountStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Telegram Query Harvester"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(statuses))),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No accounts configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderAccount(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(status application.AccountStatus, opts RenderOptions, s styles) string {
	parts := []string{
		s.account.Render(accountTitle(status)),
		loginLine(status.State, opts, s),
	}

	parts = append(parts, botLines(status.State, opts, s)...)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func accountTitle(status application.AccountStatus) string {
	session := "no session"
	if status.HasSession {
		session = "session stored"
	}
	return fmt.Sprintf("%s (%s)", status.Phone, session)
}

func loginLine(state domain.AccountState, opts RenderOptions, s styles) string {
	switch state.LoginStatus {
	case domain.LoginStatusOK:
		return s.ok.Render("login: ok") + " " + s.botMeta.Render(formatAge(state.LastLoginAt, opts.Now))
	case domain.LoginStatusFailed:
		line := s.warning.Render("login: failed")
		if state.LoginError != "" {
			line += " " + s.detail.Render(state.LoginError)
		}
		return line
	default:
		return s.empty.Render("login: never")
	}
}

func botLines(state domain.AccountState, opts RenderOptions, s styles) []string {
	if len(state.Bots) == 0 {
		return []string{s.detail.Render("bots: n/a")}
	}

	lines := make([]string, 0, len(state.Bots))
	for _, bot := range state.Bots {
		lines = append(lines, botLine(bot, opts, s))
	}
	return lines
}

func botLine(bot domain.BotState, opts RenderOptions, s styles) string {
	label := s.botKey.Render(string(bot.Handle) + ":")

	value := s.empty.Render("no query")
	if bot.Query != "" {
		value = s.query.Render(truncate(bot.Query, maxQueryWidth))
	}

	ageStyle := lipgloss.NewStyle().Foreground(ageColor(bot.FetchedAt, opts.Now, opts.StaleAfter))
	age := ageStyle.Render(fmt.Sprintf("(%s)", formatAge(bot.FetchedAt, opts.Now)))

	line := lipgloss.JoinHorizontal(lipgloss.Top, label, " ", value, " ", age)

	if bot.Missed {
		line += " " + s.warning.Render("[missed]")
	}
	switch bot.Delivery {
	case domain.DeliveryStatusOK:
		line += " " + s.ok.Render("[delivered]")
	case domain.DeliveryStatusFailed:
		line += " " + s.warning.Render("[delivery failed]")
	}
	if isStale(bot.FetchedAt, opts.Now, opts.StaleAfter) {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

func isStale(at, now time.Time, staleAfter time.Duration) bool {
	if at.IsZero() || now.IsZero() || staleAfter <= 0 {
		return false
	}
	return now.Sub(at) > staleAfter
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return "never"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	if elapsed < time.Minute {
		return "just now"
	}
	if elapsed < time.Hour {
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	}
	if elapsed < 24*time.Hour {
		return plural(int(elapsed.Hours()), "hour") + " ago"
	}

	return plural(int(math.Floor(elapsed.Hours()/24)), "day") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from 240 (faded) to 255 (bright).
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

// ageColor fades from bright for a fresh fetch to grey once staleAfter has passed.
func ageColor(at, now time.Time, staleAfter time.Duration) lipgloss.Color {
	if at.IsZero() || now.IsZero() || staleAfter <= 0 {
		return lipgloss.Color("255")
	}

	freshness := staleAfter.Seconds() - now.Sub(at).Seconds()
	return interpolateColor(freshness, 0, staleAfter.Seconds())
}
