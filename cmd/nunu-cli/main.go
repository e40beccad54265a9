package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yuqie6/NunuLog/internal/bootstrap"
	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/pkg/config"
	"github.com/yuqie6/NunuLog/internal/repository"
	"github.com/yuqie6/NunuLog/internal/service"
)

var (
	cfgFile  string
	tzOffset int
	core     *bootstrap.Core
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nunu",
		Short:        "NunuLog - 宝宝日常记录与统计",
		Long:         `NunuLog 记录喂奶、睡眠、换尿布等日常活动，并按本地日历日统计。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if tzOffset < -config.MaxTZOffset || tzOffset > config.MaxTZOffset {
				return fmt.Errorf("--tz=%d 超出范围 [-%d, %d]", tzOffset, config.MaxTZOffset, config.MaxTZOffset)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeCore()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().IntVar(&tzOffset, "tz", daterange.OffsetOf(time.Now()),
		"时区偏移分钟数（getTimezoneOffset 编码，UTC+8 为 -480），默认取本机时区")

	rootCmd.AddCommand(rangeCmd())
	rootCmd.AddCommand(babyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(lastCmd())
	rootCmd.AddCommand(statsCmd())
	return rootCmd
}

func closeCore() {
	if core != nil {
		_ = core.Close()
		core = nil
	}
}

// openCore 按需初始化核心依赖；range 子命令不需要数据库
func openCore() (*bootstrap.Core, error) {
	if core != nil {
		return core, nil
	}
	c, err := bootstrap.NewCore(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("初始化失败: %w", err)
	}
	core = c
	return core, nil
}

func localZone(tz int) *time.Location {
	return time.FixedZone("", -tz*60)
}

// ========== range ==========

func rangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "把本地日期换算为 UTC 查询区间",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "day DATE",
		Short: "单日区间，例如 range day 2024-01-01 --tz -480",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := daterange.ResolveDayString(args[0], tzOffset)
			if err != nil {
				return err
			}
			printRange(args[0], r)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "span FROM TO",
		Short: "多日区间（含首尾）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := daterange.ResolveRangeString(args[0], args[1], tzOffset)
			if err != nil {
				return err
			}
			printRange(args[0]+" ~ "+args[1], r)
			return nil
		},
	})

	return cmd
}

func printRange(label string, r daterange.UTCRange) {
	fmt.Printf("📅 %s (tz=%d)\n", label, tzOffset)
	fmt.Printf("  start: %s  (%d)\n", r.Start.Format("2006-01-02T15:04:05.000Z07:00"), r.StartMs())
	fmt.Printf("  end:   %s  (%d)\n", r.End.Format("2006-01-02T15:04:05.000Z07:00"), r.EndMs())
}

// ========== baby ==========

func babyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baby",
		Short: "宝宝档案",
	}

	var birth string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "新建宝宝档案",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			b, err := c.Services.Activities.CreateBaby(context.Background(), args[0], birth)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已创建 #%d %s\n", b.ID, b.Name)
			return nil
		},
	}
	add.Flags().StringVar(&birth, "birth", "", "出生日期 (YYYY-MM-DD)")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出宝宝档案",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			list, err := c.Services.Activities.ListBabies(context.Background())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("还没有宝宝档案，先使用 'nunu baby add NAME' 创建")
				return nil
			}
			for _, b := range list {
				line := fmt.Sprintf("  #%d %s", b.ID, b.Name)
				if b.BirthDate != "" {
					line += "  出生于 " + b.BirthDate
				}
				fmt.Println(line)
			}
			return nil
		},
	})

	return cmd
}

// ========== log ==========

func logCmd() *cobra.Command {
	var (
		babyID int64
		at     string
		end    string
		ml     int
		side   string
		note   string
		tags   []string
	)

	cmd := &cobra.Command{
		Use:   "log TYPE",
		Short: "记录一次活动（feeding/sleep/diaper/pump/bath/medicine）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startMs, err := parseLocalTime(at)
			if err != nil {
				return err
			}
			var endMs int64
			if end != "" {
				if endMs, err = parseLocalTime(end); err != nil {
					return err
				}
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			a, err := c.Services.Activities.Record(context.Background(), service.RecordInput{
				BabyID:    babyID,
				Type:      args[0],
				StartedAt: startMs,
				EndedAt:   endMs,
				AmountML:  ml,
				Side:      side,
				Note:      note,
				Tags:      tags,
			})
			if err != nil {
				return err
			}
			when := time.UnixMilli(a.StartedAt).In(localZone(tzOffset)).Format("2006-01-02 15:04")
			fmt.Printf("✅ 已记录 %s @ %s (uid=%s)\n", a.Type, when, a.UID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&babyID, "baby", 1, "宝宝 ID")
	cmd.Flags().StringVar(&at, "at", "", "开始时间，本地 \"2006-01-02 15:04\"，默认当前时间")
	cmd.Flags().StringVar(&end, "end", "", "结束时间，格式同 --at")
	cmd.Flags().IntVar(&ml, "ml", 0, "奶量 (ml)")
	cmd.Flags().StringVar(&side, "side", "", "left/right/both")
	cmd.Flags().StringVar(&note, "note", "", "备注")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "标签，可重复")
	return cmd
}

// parseLocalTime 按 --tz 解释挂钟时间；空串返回 0（由服务层取当前时间）
func parseLocalTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, localZone(tzOffset))
	if err != nil {
		return 0, fmt.Errorf("时间格式应为 \"2006-01-02 15:04\": %w", err)
	}
	return t.UnixMilli(), nil
}

// ========== import ==========

// importRecord 导入文件中的一条记录，时间为 UTC 毫秒
type importRecord struct {
	UID       string   `json:"uid"`
	BabyID    int64    `json:"baby_id"`
	Type      string   `json:"type"`
	StartedAt int64    `json:"started_at"`
	EndedAt   int64    `json:"ended_at"`
	AmountML  int      `json:"amount_ml"`
	Side      string   `json:"side"`
	Note      string   `json:"note"`
	Tags      []string `json:"tags"`
}

func importCmd() *cobra.Command {
	var babyID int64

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "从 JSON 数组文件批量导入活动，已存在的 uid 会跳过",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("读取导入文件失败: %w", err)
			}
			var records []importRecord
			if err := json.Unmarshal(b, &records); err != nil {
				return fmt.Errorf("解析导入文件失败: %w", err)
			}

			inputs := make([]service.RecordInput, len(records))
			for i, r := range records {
				if r.BabyID == 0 {
					r.BabyID = babyID
				}
				if r.StartedAt == 0 {
					return fmt.Errorf("第 %d 条缺少 started_at", i+1)
				}
				inputs[i] = service.RecordInput{
					BabyID:    r.BabyID,
					Type:      r.Type,
					UID:       r.UID,
					StartedAt: r.StartedAt,
					EndedAt:   r.EndedAt,
					AmountML:  r.AmountML,
					Side:      r.Side,
					Note:      r.Note,
					Tags:      r.Tags,
				}
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			res, err := c.Services.Activities.Import(context.Background(), inputs)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 导入 %s 条，跳过 %s 条\n", humanize.Comma(int64(res.Imported)), humanize.Comma(int64(res.Skipped)))
			return nil
		},
	}
	cmd.Flags().Int64Var(&babyID, "baby", 1, "记录未指定 baby_id 时使用的宝宝 ID")
	return cmd
}

// ========== last ==========

func lastCmd() *cobra.Command {
	var babyID int64

	cmd := &cobra.Command{
		Use:   "last",
		Short: "各类活动距今多久",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			list, err := c.Services.Activities.LastByType(context.Background(), babyID)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("暂无记录")
				return nil
			}
			for _, l := range list {
				ref := l.Activity.StartedAt
				if l.Activity.EndedAt > ref {
					ref = l.Activity.EndedAt
				}
				fmt.Printf("  %-9s %s\n", l.Type, humanize.Time(time.UnixMilli(ref)))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&babyID, "baby", 1, "宝宝 ID")
	return cmd
}

// ========== stats ==========

func statsCmd() *cobra.Command {
	var babyID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "按本地日历日统计",
	}
	cmd.PersistentFlags().Int64Var(&babyID, "baby", 1, "宝宝 ID")

	cmd.AddCommand(&cobra.Command{
		Use:   "day [DATE]",
		Short: "单日统计，默认今天",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := daterange.Today(time.Now(), tzOffset).String()
			if len(args) == 1 {
				date = args[0]
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			st, err := c.Services.Stats.GetDailyStats(context.Background(), babyID, date, tzOffset)
			if err != nil {
				return err
			}
			fmt.Printf("📅 %s  共 %d 条\n", st.Date, st.Total)
			printTypeStats(st.Types)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "range FROM TO",
		Short: "区间统计（含首尾，最多 stats.max_range_days 天）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			rs, err := c.Services.Stats.GetRangeStats(context.Background(), babyID, args[0], args[1], tzOffset)
			if err != nil {
				return err
			}
			printRangeStats(rs)
			return nil
		},
	})

	var days int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "最近 7 / 30 天统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			rs, err := c.Services.Stats.GetRecentStats(context.Background(), babyID, days, tzOffset)
			if err != nil {
				return err
			}
			printRangeStats(rs)
			return nil
		},
	}
	recent.Flags().IntVar(&days, "days", 7, "7 或 30")
	cmd.AddCommand(recent)

	return cmd
}

func printTypeStats(types []repository.TypeStat) {
	if len(types) == 0 {
		fmt.Println("  (无记录)")
		return
	}
	for _, t := range types {
		line := fmt.Sprintf("  • %-9s %d 次", t.Type, t.Count)
		if t.TotalDuration > 0 {
			line += "  时长 " + service.FormatDuration(time.Duration(t.TotalDuration)*time.Millisecond)
		}
		if t.TotalAmountML > 0 {
			line += "  奶量 " + humanize.Comma(t.TotalAmountML) + " ml"
		}
		fmt.Println(line)
	}
}

func printRangeStats(rs *service.RangeStats) {
	fmt.Printf("📊 %s ~ %s（%d 天）\n", rs.From, rs.To, rs.DayCount)
	fmt.Println("═══════════════════════════════════════")
	printTypeStats(rs.Totals)
	if len(rs.Totals) > 0 {
		fmt.Printf("\n日均\n")
		for _, t := range rs.Totals {
			fmt.Printf("  • %-9s %.1f 次/天\n", t.Type, rs.AvgPerDay(t.Type))
		}
	}
	fmt.Printf("\n每日\n")
	for _, d := range rs.Days {
		fmt.Printf("  %s  %d 条\n", d.Date, d.Total)
	}
	fmt.Println("═══════════════════════════════════════")
}
