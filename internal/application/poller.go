package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/charmbracelet/log"
)

const defaultProbe = "/start"

type PollerConfig struct {
	Probe  string
	Settle time.Duration
	Pacing time.Duration
}

// BotOutcome is the result of one probe/extract/reconcile round for a bot.
type BotOutcome struct {
	Token    string
	Found    bool
	Saved    domain.SaveResult
	Delivery domain.DeliveryStatus
}

type CycleReport struct {
	Bots     int
	Found    int
	Missed   int
	Failures int
}

// Poller runs the accounts x bots polling cycle strictly sequentially.
type Poller struct {
	registry  ports.BotRegistry
	store     ports.QueryStore
	deliverer ports.Deliverer
	state     ports.StateRepository
	extractor *Extractor
	clock     ports.Clock
	cfg       PollerConfig
	logger    *log.Logger
}

func NewPoller(
	registry ports.BotRegistry,
	store ports.QueryStore,
	deliverer ports.Deliverer,
	state ports.StateRepository,
	extractor *Extractor,
	clock ports.Clock,
	cfg PollerConfig,
	logger *log.Logger,
) *Poller {
	if extractor == nil {
		extractor = NewExtractor(defaultWindow)
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.Probe == "" {
		cfg.Probe = defaultProbe
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Poller{
		registry:  registry,
		store:     store,
		deliverer: deliverer,
		state:     state,
		extractor: extractor,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Bots reads the registry. A missing registry file counts as empty.
func (p *Poller) Bots(ctx context.Context) ([]domain.BotEntry, error) {
	bots, err := p.registry.Bots(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigMissing) {
			return nil, fmt.Errorf("load bot registry: %w", err)
		}
		p.logger.Warn("bot registry missing", "err", err)
		return nil, nil
	}
	return bots, nil
}

// RunCycle re-reads the registry and polls every bot for every session.
// Per-bot failures are logged and never abort the cycle; only context
// cancellation stops it early.
func (p *Poller) RunCycle(ctx context.Context, sessions []ActiveSession) (CycleReport, error) {
	var report CycleReport

	bots, err := p.Bots(ctx)
	if err != nil {
		p.logger.Error("cycle aborted", "err", err)
		return report, err
	}
	if len(bots) == 0 {
		p.logger.Warn("no bots found")
		return report, nil
	}

	p.logger.Info("cycle started", "accounts", len(sessions), "bots", len(bots))

	for _, active := range sessions {
		for _, bot := range bots {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			report.Bots++
			outcome, err := p.PollBot(ctx, active, bot)
			switch {
			case err != nil:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return report, ctxErr
				}
				report.Failures++
				p.logger.Error("poll failed", "account", active.Phone, "bot", bot.Handle, "err", err)
			case outcome.Found:
				report.Found++
			default:
				report.Missed++
			}

			if err := p.clock.Sleep(ctx, p.cfg.Pacing); err != nil {
				return report, err
			}
		}
	}

	p.logger.Info("cycle finished", "polled", report.Bots, "found", report.Found, "missed", report.Missed, "failed", report.Failures)
	return report, nil
}

// PollBot probes one bot, waits for the reply, extracts and stores the
// query and forwards it when the bot has an endpoint. Panics are recovered
// into errors.
func (p *Poller) PollBot(ctx context.Context, active ActiveSession, bot domain.BotEntry) (outcome BotOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll %s: panic: %v", bot.Handle, r)
		}
	}()

	logger := p.logger.With("account", active.Phone, "bot", bot.Handle)
	session := active.Session

	entity, err := session.ResolveEntity(ctx, bot.Handle)
	if err != nil {
		return BotOutcome{}, fmt.Errorf("resolve %s: %w", bot.Handle, err)
	}
	if err := session.SendMessage(ctx, entity, p.cfg.Probe); err != nil {
		return BotOutcome{}, fmt.Errorf("probe %s: %w", bot.Handle, err)
	}
	if err := p.clock.Sleep(ctx, p.cfg.Settle); err != nil {
		return BotOutcome{}, err
	}

	messages, err := session.FetchRecentMessages(ctx, entity, p.extractor.Window())
	if err != nil {
		return BotOutcome{}, fmt.Errorf("fetch messages from %s: %w", bot.Handle, err)
	}

	fetchedAt := p.clock.Now()
	token, rule, ok := p.extractor.extract(messages, entity.ID)
	if !ok {
		logger.Warn("no query found", "messages", len(messages))
		p.recordBot(ctx, active.Phone, bot.Handle, func(state *domain.BotState) {
			state.FetchedAt = fetchedAt
			state.Missed = true
		})
		return BotOutcome{}, nil
	}

	outcome = BotOutcome{Token: token, Found: true}
	outcome.Saved, err = p.store.Save(ctx, domain.QueryKey{Account: active.Phone, Bot: bot.Handle}, token)
	if err != nil {
		return outcome, fmt.Errorf("store query: %w", err)
	}

	if outcome.Saved.Changed {
		logger.Info("query saved", "rule", rule, "query", token)
	} else {
		logger.Info("query unchanged", "rule", rule)
	}

	if bot.HasEndpoint() {
		outcome.Delivery = p.deliver(ctx, logger, active.Phone, bot, token, fetchedAt)
	}

	p.recordBot(ctx, active.Phone, bot.Handle, func(state *domain.BotState) {
		state.Query = token
		state.FetchedAt = fetchedAt
		state.Missed = false
		if outcome.Saved.Changed {
			state.ChangedAt = fetchedAt
		}
		if outcome.Delivery != domain.DeliveryStatusNone {
			state.Delivery = outcome.Delivery
		}
		if outcome.Delivery == domain.DeliveryStatusOK {
			state.DeliveredAt = p.clock.Now()
		}
	})

	return outcome, nil
}

func (p *Poller) deliver(ctx context.Context, logger *log.Logger, phone domain.PhoneID, bot domain.BotEntry, token string, fetchedAt time.Time) domain.DeliveryStatus {
	if p.deliverer == nil {
		return domain.DeliveryStatusNone
	}

	payload := domain.Delivery{
		Query:     token,
		Bot:       string(bot.Handle),
		Account:   string(phone),
		FetchedAt: fetchedAt,
	}
	if err := p.deliverer.Deliver(ctx, bot.Endpoint, payload); err != nil {
		logger.Error("delivery failed", "endpoint", bot.Endpoint, "err", err)
		return domain.DeliveryStatusFailed
	}

	logger.Info("query delivered", "endpoint", bot.Endpoint)
	return domain.DeliveryStatusOK
}

func (p *Poller) recordBot(ctx context.Context, phone domain.PhoneID, handle domain.BotHandle, update func(*domain.BotState)) {
	if p.state == nil || ctx.Err() != nil {
		return
	}

	state, err := p.state.Get(ctx, phone)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			p.logger.Warn("load account state", "account", phone, "err", err)
			return
		}
		state = domain.AccountState{Phone: phone}
	}

	update(state.Bot(handle))

	if err := p.state.Save(ctx, state); err != nil {
		p.logger.Warn("save account state", "account", phone, "err", err)
	}
}
