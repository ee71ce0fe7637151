package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/deckprice/internal/app/planner"
	"github.com/John-Robertt/deckprice/internal/app/run"
	"github.com/John-Robertt/deckprice/internal/browser"
	"github.com/John-Robertt/deckprice/internal/config"
	"github.com/John-Robertt/deckprice/internal/domain"
	"github.com/John-Robertt/deckprice/internal/infra/fsx"
	"github.com/John-Robertt/deckprice/internal/logx"
	"github.com/John-Robertt/deckprice/internal/report"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError 携带进程退出码；cobra 自身的参数错误不会被包装，统一视为用法错误。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fail(err error) error { return &exitError{code: exitFailure, err: err} }

// execute 构造命令树并运行，返回进程退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintf(stderr, "错误：%v\n", ee.err)
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	fmt.Fprintln(stderr, `使用 "deckprice run --help" 查看详细说明。`)
	return exitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "deckprice",
		Short:         "deckprice 为 MTG 牌表查询每张牌最便宜的购买渠道并汇总总价。",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr))
	return root
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var cli config.CLIArgs

	cmd := &cobra.Command{
		Use:   "run [deck] [flags]",
		Short: "解析牌表、查询价格并输出报价清单",
		Long: `解析牌表、查询价格并输出报价清单。

stdout 为终端时输出表格（以及 mass import 文本）；否则 stdout 只输出一个 RunReport JSON。
进度与日志一律写 stderr。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cli.DeckPath = args[0]
			}
			f := cmd.Flags()
			cli.ShopSet = f.Changed("shop")
			cli.OpenBrowserSet = f.Changed("browser")
			cli.MassImportSet = f.Changed("mass-import")
			cli.TotalModeSet = f.Changed("total-mode")
			cli.StaleAfterSet = f.Changed("stale-after")
			return runRun(cmd.Context(), cli, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cli.ConfigPath, "config", "", "配置文件路径（默认读取 ./"+config.FileName+"，可选）")
	f.StringVar(&cli.Shop, "shop", config.DefaultShop, "代理店：bootlegmage|acardgameshop|magiccardplus")
	f.StringVar(&cli.CacheDB, "cache-db", "", "缓存数据库路径（默认与牌表同目录的 "+config.DefaultCacheName+"）")
	f.BoolVar(&cli.OpenBrowser, "browser", false, "完成后在 Firefox 中打开购买链接")
	f.BoolVar(&cli.MassImport, "mass-import", false, "输出 TCGplayer mass import 文本")
	f.StringVar(&cli.TotalMode, "total-mode", config.DefaultTotalMode, "总价口径：unique|per_copy")
	f.DurationVar(&cli.StaleAfter, "stale-after", config.DefaultStaleAfter, "缓存过期时间")
	f.StringVar(&cli.ReportPath, "report", "", "额外把 RunReport JSON 写入该文件")
	f.BoolVar(&cli.Debug, "debug", false, "输出 debug 日志")
	return cmd
}

func runRun(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fail(fmt.Errorf("读取当前目录失败：%w", err))
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return fail(err)
	}

	log := logx.New(stderr, logx.Options{
		Level:   logx.ParseLevel(eff.LogLevel),
		NoColor: !isTTY(stderr),
	})
	ctx, log, _ = logx.WithRunID(ctx, log)

	reg, err := run.NewRegistry(eff, log)
	if err != nil {
		return fail(fmt.Errorf("初始化适配器失败：%w", err))
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
		warnDuration(progressW, eff)
	}

	rr, err := run.ExecuteWithObserver(ctx, eff, run.Deps{Registry: reg, Log: log}, obs)
	if err != nil {
		return fail(err)
	}
	plan := run.Purchase(eff, reg, rr)

	if err := emit(stdout, stderr, eff, rr, plan); err != nil {
		return fail(err)
	}

	if eff.ReportPath != "" {
		b, err := report.EncodeJSON(rr)
		if err != nil {
			return fail(err)
		}
		if err := fsx.WriteFile(eff.ReportPath, b); err != nil {
			return fail(fmt.Errorf("写入 report 失败：%w", err))
		}
		if interactive {
			fmt.Fprintf(progressW, "report: %s\n", eff.ReportPath)
		}
	}

	if len(plan.Tabs) > 0 {
		openTabs(ctx, eff, plan.Tabs, log)
	}
	return nil
}

// emit 按 stdout 是否为终端选择输出形态：终端输出表格，否则只输出一个 JSON 文档。
func emit(stdout, stderr io.Writer, eff config.EffectiveConfig, rr domain.RunReport, plan planner.Purchase) error {
	if isTTY(stdout) {
		if err := report.WriteTable(stdout, rr); err != nil {
			return err
		}
		if eff.MassImport {
			fmt.Fprintln(stdout)
			return report.WriteMassImport(stdout, plan.MassImport)
		}
		return nil
	}

	if err := report.WriteJSON(stdout, rr); err != nil {
		return err
	}
	if eff.MassImport {
		// stdout 已被 JSON 占用，mass import 文本改走 stderr。
		if err := report.WriteMassImport(stderr, plan.MassImport); err != nil {
			return err
		}
	}
	fmt.Fprintf(stderr, "完成：cards=%d priced=%d unknown=%d cached=%d total=$%s\n",
		rr.Summary.Cards, rr.Summary.Priced, rr.Summary.Unknown, rr.Summary.Cached, rr.Total.StringFixed(2),
	)
	return nil
}

// openTabs 打开浏览器标签页；失败只记日志，不影响已经输出的结果。
func openTabs(ctx context.Context, eff config.EffectiveConfig, urls []string, log *slog.Logger) {
	cmd := browser.Command(eff.BrowserCommand, runtime.GOOS)
	n, err := browser.New(cmd, eff.TabDelay, log).OpenAll(ctx, urls)
	if err != nil {
		log.Warn("open browser tabs failed",
			slog.String("command", cmd),
			slog.Int("opened", n),
			slog.Int("total", len(urls)),
			logx.Error(err),
		)
		return
	}
	log.Info("opened browser tabs", slog.Int("total", n))
}

func warnDuration(w io.Writer, eff config.EffectiveConfig) {
	fmt.Fprintln(w, "This may take 1-2 minutes; cards are looked up one at a time.")
	if eff.OpenBrowser {
		fmt.Fprintln(w, `"Open URLs in Firefox" is on: it may open upwards of 100 tabs.`)
	}
	fmt.Fprintln(w)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
