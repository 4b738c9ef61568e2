package heartbeat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

// reportDue returns "morning" or "evening" when that report's hour matches
// and it hasn't been sent today. A configured hour of -1 disables the
// report entirely.
func (e *Engine) reportDue(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := now.Format("2006-01-02")
	hour := now.Hour()

	if e.cfg.MorningReportHour >= 0 && hour == e.cfg.MorningReportHour && today != e.morningReportDate {
		return "morning"
	}
	if e.cfg.EveningReportHour >= 0 && hour == e.cfg.EveningReportHour && today != e.eveningReportDate {
		return "evening"
	}
	return ""
}

// sendReport generates and delivers a scheduled report. Reports are
// scheduled content: they never touch the proactive rate-limit counters.
func (e *Engine) sendReport(ctx context.Context, reportType string, ownerID int64, obs map[string]any) {
	logger := log.FromCtx(ctx)

	prompt := e.prompts.GetWithPersona("report_"+reportType, "Report")
	if prompt == "" {
		logger.Warn().Str("type", reportType).Msg("report prompt not found")
		return
	}

	obsText, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize observation for report")
		return
	}

	history := []core.Message{
		{Role: core.RoleSystem, Content: prompt},
		{Role: core.RoleUser, Content: "Current context:\n" + string(obsText)},
	}

	res, err := e.ai.Chat(ctx, history, nil, core.ChatOptions{Temperature: 0.7, MaxTokens: 600})
	if err != nil {
		logger.Error().Err(err).Str("type", reportType).Msg("report generation failed")
		return
	}
	e.logUsage(ctx, res, "report_"+reportType)

	content := strings.TrimSpace(res.Message.Content)
	if content == "" || e.sender == nil {
		logger.Warn().Str("type", reportType).Msg("report skipped: no sender or empty content")
		return
	}

	if err := e.sender.Send(ctx, ownerID, content); err != nil {
		logger.Error().Err(err).Str("type", reportType).Msg("report delivery failed")
		return
	}

	if _, err := e.messages.AddMessage(ctx, ownerID, core.RoleAssistant, content); err != nil {
		logger.Warn().Err(err).Msg("failed to persist report message")
	}
	e.logHeartbeat(ctx, "report_"+reportType, truncate(content, 100))
	logger.Info().Str("type", reportType).Msg("daily report sent")

	e.mu.Lock()
	today := e.now().Format("2006-01-02")
	if reportType == "morning" {
		e.morningReportDate = today
	} else {
		e.eveningReportDate = today
	}
	e.mu.Unlock()
}
