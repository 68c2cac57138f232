package rank

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/quantbotio/quantbot/internal/domain"
)

// Scoring weights. Confidence contributes up to 40 points, expected value up
// to 30, risk tier up to 20, with flat bonuses for arbitrage and news
// alignment. The learning multiplier then scales the whole score.
const (
	confidenceWeight = 0.4
	evWeight         = 3.0
	evCap            = 30.0
	lowRiskBonus     = 20.0
	mediumRiskBonus  = 10.0
	arbitrageBonus   = 25.0
	newsBonus        = 10.0
)

// Config holds ranking engine settings.
type Config struct {
	// OracleEnabled turns the advisory pass on.
	OracleEnabled bool
	// OracleTopN is how many leading candidates the oracle may reorder.
	OracleTopN int
}

// Result is the outcome of one ranking pass.
type Result struct {
	// Ranked is every scored opportunity, best first.
	Ranked []domain.RankedOpportunity
	// Top is the best candidate, nil when the input was empty.
	Top *domain.RankedOpportunity
}

// Engine scores opportunities deterministically and optionally lets an
// advisory oracle reorder the leading slate.
type Engine struct {
	cfg     Config
	history *History
	oracle  domain.AdvisoryOracle
	logger  *slog.Logger
}

// NewEngine creates a ranking engine. oracle may be nil, in which case the
// advisory pass is skipped regardless of cfg.OracleEnabled.
func NewEngine(cfg Config, history *History, oracle domain.AdvisoryOracle, logger *slog.Logger) *Engine {
	if cfg.OracleTopN < 1 {
		cfg.OracleTopN = 5
	}
	return &Engine{
		cfg:     cfg,
		history: history,
		oracle:  oracle,
		logger:  logger.With(slog.String("component", "rank_engine")),
	}
}

// Rank scores every opportunity and returns them best first. Equal scores
// keep their input order. An empty input yields an empty Result with a nil
// Top and no error. Ranking the same input twice yields the same order.
func (e *Engine) Rank(ctx context.Context, opps []domain.Opportunity, news []domain.NewsItem) Result {
	if len(opps) == 0 {
		return Result{}
	}

	ranked := make([]domain.RankedOpportunity, 0, len(opps))
	for _, o := range opps {
		ranked = append(ranked, domain.RankedOpportunity{
			Opportunity: o,
			Score:       e.Score(o, news),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	ranked = e.applyAdvisory(ctx, ranked)

	top := ranked[0]
	return Result{Ranked: ranked, Top: &top}
}

// Score computes the deterministic score for a single opportunity.
func (e *Engine) Score(o domain.Opportunity, news []domain.NewsItem) float64 {
	score := confidenceWeight * o.Confidence

	ev := evWeight * o.ExpectedValue
	if ev > evCap {
		ev = evCap
	}
	score += ev

	switch o.Risk {
	case domain.RiskLow:
		score += lowRiskBonus
	case domain.RiskMedium:
		score += mediumRiskBonus
	}

	if o.Type == domain.OpportunityArbitrage {
		score += arbitrageBonus
	}

	if newsAligned(o.Title, news) {
		score += newsBonus
	}

	// Scale by observed performance for this opportunity type. No records
	// means no signal, so the multiplier stays at 1.
	if e.history != nil {
		if rate, n := e.history.SuccessRate(o.Type); n > 0 {
			score *= 0.5 + rate
		}
	}

	return score
}

// newsAligned reports whether any headline's leading token matches the
// opportunity title's leading token, case-insensitively. Leading-token
// matching keeps the check cheap and avoids rewarding incidental word
// overlap deep inside headlines.
func newsAligned(title string, news []domain.NewsItem) bool {
	lead := leadingToken(title)
	if lead == "" {
		return false
	}
	for _, n := range news {
		if leadingToken(n.Headline) == lead {
			return true
		}
	}
	return false
}

func leadingToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
