// Package summary generates daily group-chat summaries: it pulls history
// from the message archive, asks the LLM for a structured write-up,
// renders it to an image card, and posts it back to each group.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/chatclaw/internal/bot"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
)

// ErrBusy means a summary run is already in flight. Runs take minutes;
// overlapping them would double-post.
var ErrBusy = errors.New("summary already running")

const systemPrompt = `你是一个专业的群聊记录分析助手。请分析提供的聊天记录，生成结构化的 Markdown 格式总结。

总结应包含以下部分：

## 概览
简要描述今日群聊的整体氛围和活跃度（1-2句话）

## 话题分析
识别出所有讨论话题，对于每个话题提供：
- **主题** - 话题的简短标题
- **时间**: 起止时间（如 09:30-10:15）
- **参与者**: 主要参与讨论的成员
- **内容**: 详细描述讨论过程，包括各方观点、提出的问题、给出的解答或建议、达成的共识等（3-5句话）

## 重要信息
提取值得关注的信息、决定或结论（如无则写"无"）

注意：
- 使用中文输出
- 话题按时间顺序排列
- 合并相似或连续的讨论
- 忽略表情包、无意义的水群内容
- 如果聊天内容较少或无实质内容，如实说明
- 不要生成活跃成员/发言排行相关内容，这部分由程序自动统计`

// LLM is the slice of the AI provider the summarizer needs.
type LLM interface {
	AskWith(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Messenger delivers the rendered card to a group.
type Messenger interface {
	FindChat(ctx context.Context, name string) error
	SendImage(ctx context.Context, path string) error
}

// GroupResult records the outcome for one group.
type GroupResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	MsgCount int    `json:"msg_count"`
}

// Result is the outcome of one whole run.
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Groups  map[string]GroupResult `json:"groups"`
}

// Service is the single-flight summary runner.
type Service struct {
	cfg       *config.Holder
	archive   *ArchiveClient
	llm       LLM
	messenger Messenger
	gate      *bot.Gate

	render func(htmlPage, outputPath string) error
	now    func() time.Time

	mu      sync.Mutex
	running atomic.Bool
}

func NewService(cfg *config.Holder, archive *ArchiveClient, llm LLM, messenger Messenger, gate *bot.Gate) *Service {
	return &Service{
		cfg:       cfg,
		archive:   archive,
		llm:       llm,
		messenger: messenger,
		gate:      gate,
		render:    renderToImage,
		now:       time.Now,
	}
}

// Running reports whether a run is in flight.
func (s *Service) Running() bool { return s.running.Load() }

// Run executes one summary pass synchronously. date selects the 05:00 to
// next-day 05:00 window ("2006-01-02"); empty means the last 24 hours.
// Returns ErrBusy if another run holds the lock.
func (s *Service) Run(ctx context.Context, date string) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	return s.execute(ctx, date)
}

// RunAsync starts a run in the background. Returns ErrBusy immediately if
// one is already in flight.
func (s *Service) RunAsync(ctx context.Context, date string) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	s.running.Store(true)

	go func() {
		defer s.mu.Unlock()
		defer s.running.Store(false)
		if _, err := s.execute(context.WithoutCancel(ctx), date); err != nil {
			slog.Error("summary run failed", "error", err)
		}
	}()
	return nil
}

// RunCron fires runs on the configured schedule until ctx is done.
func (s *Service) RunCron(ctx context.Context) error {
	gron := gronx.New()
	slog.Info("summary scheduler started", "cron", s.cfg.Current().Summary.Cron)

	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			slog.Info("summary scheduler stopped")
			return nil
		case <-time.After(next.Sub(now)):
		}

		expr := s.cfg.Current().Summary.Cron
		if expr == "" {
			continue
		}
		due, err := gron.IsDue(expr, next)
		if err != nil {
			slog.Error("bad summary cron", "expr", expr, "error", err)
			continue
		}
		if !due {
			continue
		}
		// The scheduler goroutine has nothing else to do, so the run is
		// synchronous; a tick landing mid-run is skipped via ErrBusy.
		result, err := s.Run(ctx, "")
		if err != nil {
			slog.Warn("scheduled summary skipped", "error", err)
			continue
		}
		slog.Info("scheduled summary finished", "message", result.Message)
	}
}

func (s *Service) execute(ctx context.Context, date string) (*Result, error) {
	cfg := s.cfg.Current().Summary
	result := &Result{Groups: make(map[string]GroupResult)}

	slog.Info("summary run started", "groups", len(cfg.Groups), "date", date)

	if err := s.archive.Decrypt(ctx, cfg.InputPath, cfg.Key, cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("decrypt archive: %w", err)
	}

	start, end, dateStr, err := s.window(date)
	if err != nil {
		return nil, err
	}

	var ok, failed int
	for _, group := range cfg.Groups {
		gr := s.summarizeGroup(ctx, cfg, group, start, end, dateStr)
		result.Groups[group.ID] = gr
		if gr.Success {
			ok++
		} else if gr.MsgCount > 0 || gr.Message != "没有消息记录" {
			failed++
		}
	}

	total := len(cfg.Groups)
	switch {
	case failed == 0:
		result.Success = true
		result.Message = fmt.Sprintf("全部完成: %d/%d 个群聊", ok, total)
	case ok > 0:
		result.Success = true
		result.Message = fmt.Sprintf("部分完成: %d/%d 成功, %d/%d 失败", ok, total, failed, total)
	default:
		result.Message = fmt.Sprintf("全部失败: %d/%d 个群聊", failed, total)
	}
	slog.Info("summary run finished", "result", result.Message)
	return result, nil
}

// window resolves the time range: a named date covers 05:00 to next-day
// 05:00 local, matching when group chatter actually quiets down.
func (s *Service) window(date string) (start, end time.Time, dateStr string, err error) {
	if date != "" {
		day, perr := time.ParseInLocation("2006-01-02", date, time.Local)
		if perr != nil {
			return start, end, "", fmt.Errorf("invalid date %q: %w", date, perr)
		}
		start = day.Add(5 * time.Hour)
		return start, start.Add(24 * time.Hour), day.Format("2006-01-02"), nil
	}
	end = s.now()
	start = end.Add(-24 * time.Hour)
	dateStr = start.Format("2006-01-02 15:04") + " ~ " + end.Format("2006-01-02 15:04")
	return start, end, dateStr, nil
}

func (s *Service) summarizeGroup(ctx context.Context, cfg config.SummaryConfig, group config.SummaryGroup, start, end time.Time, dateStr string) GroupResult {
	slog.Info("summarizing group", "group", group.Name)

	msgs, err := s.archive.FetchMessages(ctx, cfg.OutputDir, group.ID, start, end, 2000)
	if err != nil {
		return GroupResult{Message: fmt.Sprintf("获取消息失败: %v", err)}
	}
	if len(msgs) == 0 {
		return GroupResult{Message: "没有消息记录"}
	}

	text, count, senders := formatMessages(msgs)
	if count == 0 {
		return GroupResult{Message: "没有有效消息"}
	}

	userPrompt := fmt.Sprintf("请总结以下群聊记录：\n\n群聊: %s\n日期: %s\n\n聊天记录:\n---\n%s\n---\n\n请生成 Markdown 格式的总结。",
		group.Name, dateStr, text)
	md, err := s.llm.AskWith(ctx, systemPrompt, userPrompt, 2000, 0.3)
	if err != nil {
		return GroupResult{Message: fmt.Sprintf("LLM 总结失败: %v", err), MsgCount: count}
	}
	if len([]rune(md)) < 50 {
		return GroupResult{Message: "LLM 返回内容无效", MsgCount: count}
	}

	md = md + "\n\n" + generateRanking(senders)
	page := buildPage(markdownToHTML(md), dateStr, count, s.now().Format("2006-01-02 15:04:05"))

	outputImage := filepath.Join(cfg.OutputDir, fmt.Sprintf("summary_%s_%s.png", group.ID, s.now().Format("2006-01-02")))
	if err := s.render(page, outputImage); err != nil {
		return GroupResult{Message: fmt.Sprintf("图片渲染失败: %v", err), MsgCount: count}
	}

	err = s.gate.Do(func() error {
		if err := s.messenger.FindChat(ctx, group.Name); err != nil {
			return err
		}
		return s.messenger.SendImage(ctx, outputImage)
	})
	if err != nil {
		return GroupResult{Message: fmt.Sprintf("发送失败: %v", err), MsgCount: count}
	}
	return GroupResult{Success: true, Message: "成功", MsgCount: count}
}
