package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/settings"
	apphttp "github.com/danya2271/LocalLLMTradingBot/pkg/http"
)

// Poller long-polls the Telegram getUpdates API and applies operator
// commands to the settings store. Only configured user IDs are honored.
type Poller struct {
	botToken    string
	authorized  map[int64]bool
	pollTimeout int
	client      *apphttp.Client
	channel     *TelegramChannel
	store       settings.Store
	logger      core.ILogger
	offset      int64
}

// NewPoller creates a command poller. pollTimeout is the long-poll hold time
// in seconds.
func NewPoller(botToken string, userIDs []int64, pollTimeout int, baseURL string, channel *TelegramChannel, store settings.Store, logger core.ILogger) *Poller {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	authorized := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		authorized[id] = true
	}
	return &Poller{
		botToken:    botToken,
		authorized:  authorized,
		pollTimeout: pollTimeout,
		client:      apphttp.NewClient(baseURL, time.Duration(pollTimeout+10)*time.Second),
		channel:     channel,
		store:       store,
		logger:      logger.WithField("component", "telegram_poller"),
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Run polls until the context is canceled
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting Telegram command poller", "timeout_seconds", p.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Failed to fetch updates", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.handleUpdate(ctx, u)
		}
	}
}

func (p *Poller) fetchUpdates(ctx context.Context) ([]update, error) {
	path := fmt.Sprintf("/bot%s/getUpdates", p.botToken)
	body, err := p.client.Get(ctx, path, map[string]string{
		"offset":  strconv.FormatInt(p.offset, 10),
		"timeout": strconv.Itoa(p.pollTimeout),
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getUpdates returned ok=false")
	}
	return resp.Result, nil
}

func (p *Poller) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
		return
	}
	if !p.authorized[u.Message.From.ID] {
		p.logger.Warn("Ignoring command from unauthorized user", "user_id", u.Message.From.ID)
		return
	}

	reply := p.execCommand(ctx, u.Message.Text)
	if reply == "" {
		return
	}
	if err := p.channel.SendText(ctx, u.Message.Chat.ID, reply); err != nil {
		p.logger.Error("Failed to send command reply", "error", err)
	}
}

// execCommand applies one operator command and returns the reply text.
func (p *Poller) execCommand(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/pair":
		if len(args) != 1 {
			return "usage: /pair <INST-ID>"
		}
		pair := strings.ToUpper(args[0])
		if err := p.store.SetTradingPair(ctx, pair); err != nil {
			return "error: " + err.Error()
		}
		return "trading pair set to " + pair

	case "/slippage":
		if len(args) != 2 {
			return "usage: /slippage <buy_pct> <sell_pct>"
		}
		buy, err1 := decimal.NewFromString(args[0])
		sell, err2 := decimal.NewFromString(args[1])
		if err1 != nil || err2 != nil {
			return "slippage values must be numbers"
		}
		if err := p.store.SetSlippage(ctx, settings.Slippage{BuyPct: buy, SellPct: sell}); err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("slippage set to buy %s%% sell %s%%", buy, sell)

	case "/wait":
		if len(args) != 1 {
			return "usage: /wait <seconds>"
		}
		seconds, err := strconv.Atoi(args[0])
		if err != nil {
			return "wait must be an integer number of seconds"
		}
		if err := p.store.SetWaitSeconds(ctx, seconds); err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("default wait set to %ds", seconds)

	case "/windows":
		if len(args) == 0 {
			return "usage: /windows <bar>=<count> [...]  e.g. /windows 1m=40 5m=20"
		}
		windows := make(map[string]int, len(args))
		for _, arg := range args {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) != 2 {
				return "each window must be <bar>=<count>"
			}
			count, err := strconv.Atoi(parts[1])
			if err != nil {
				return "window counts must be integers"
			}
			windows[parts[0]] = count
		}
		if err := p.store.SetDataWindows(ctx, windows); err != nil {
			return "error: " + err.Error()
		}
		return "data windows updated"

	case "/status":
		return p.statusReply(ctx)

	default:
		return "unknown command; available: /pair /slippage /wait /windows /status"
	}
}

func (p *Poller) statusReply(ctx context.Context) string {
	pair, err := p.store.TradingPair(ctx)
	if err != nil {
		return "error: " + err.Error()
	}
	sl, err := p.store.GetSlippage(ctx)
	if err != nil {
		return "error: " + err.Error()
	}
	wait, err := p.store.WaitSeconds(ctx)
	if err != nil {
		return "error: " + err.Error()
	}
	windows, err := p.store.DataWindows(ctx)
	if err != nil {
		return "error: " + err.Error()
	}

	bars := make([]string, 0, len(windows))
	for bar := range windows {
		bars = append(bars, bar)
	}
	sort.Strings(bars)
	parts := make([]string, 0, len(bars))
	for _, bar := range bars {
		parts = append(parts, fmt.Sprintf("%s=%d", bar, windows[bar]))
	}

	return fmt.Sprintf("pair: %s\nslippage: buy %s%% sell %s%%\nwait: %ds\nwindows: %s",
		pair, sl.BuyPct, sl.SellPct, wait, strings.Join(parts, " "))
}
