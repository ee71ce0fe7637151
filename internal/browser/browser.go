package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/John-Robertt/deckprice/internal/logx"
)

// DefaultTabDelay 是相邻两次打开标签页之间的间隔。
const DefaultTabDelay = time.Second

// DefaultCommand 返回 goos 平台上 Firefox 的默认路径；未知平台返回空串。
func DefaultCommand(goos string) string {
	switch goos {
	case "linux":
		return "/usr/bin/firefox"
	case "darwin":
		return "/Applications/Firefox.app/Contents/MacOS/firefox"
	case "windows":
		return `C:\Program Files\Mozilla Firefox\firefox.exe`
	default:
		return ""
	}
}

// Command 选出实际使用的浏览器命令：显式配置优先，否则按平台取默认值。
func Command(override, goos string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return DefaultCommand(goos)
}

// Launcher 在浏览器中打开一个 URL。
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// Exec 通过启动外部浏览器进程打开新标签页，不等待进程退出。
type Exec struct {
	Command string
	Args    []string
}

func (e Exec) Launch(_ context.Context, url string) error {
	if strings.TrimSpace(e.Command) == "" {
		return errors.New("未配置浏览器命令")
	}
	args := append(append([]string(nil), e.Args...), "-new-tab", url)
	// 浏览器进程的生命周期与本次运行无关，不绑定 ctx。
	cmd := exec.Command(e.Command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("启动浏览器 %q 失败：%w", e.Command, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Opener 按固定节奏依次打开一组 URL。
type Opener struct {
	Launcher Launcher
	Delay    time.Duration
	// Sleep 为空时使用可被 ctx 打断的定时器。
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *slog.Logger
}

// New 构造使用外部进程的 Opener。
func New(command string, delay time.Duration, log *slog.Logger) Opener {
	return Opener{
		Launcher: Exec{Command: command},
		Delay:    delay,
		Log:      log,
	}
}

// OpenAll 依次打开 urls（空串跳过），两次打开之间等待 Delay。
// 任一次启动失败即停止，返回已成功打开的数量。
func (o Opener) OpenAll(ctx context.Context, urls []string) (int, error) {
	if o.Launcher == nil {
		return 0, errors.New("launcher 不能为空")
	}
	log := logx.OrDiscard(o.Log)
	sleep := o.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	opened := 0
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if opened > 0 && o.Delay > 0 {
			if err := sleep(ctx, o.Delay); err != nil {
				return opened, err
			}
		}
		if err := o.Launcher.Launch(ctx, u); err != nil {
			return opened, err
		}
		opened++
		log.Debug("opened tab", slog.String(logx.FieldURL, u))
	}
	return opened, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
