package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/clock"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/metrics"
	"bling-mirror/internal/model"
	"bling-mirror/internal/repository"
)

// ReceivablesAPI is the part of the Bling client the receivables sync uses.
type ReceivablesAPI interface {
	Tenant() string
	ListReceivables(ctx context.Context, q bling.ReceivableQuery) ([]model.ReceivableSummary, error)
	GetReceivable(ctx context.Context, id int64) (*model.ReceivableDetail, error)
}

// ReceivablesConfig holds the list filter and day boundary settings.
type ReceivablesConfig struct {
	Situations      []string
	DateFilterType  string
	PaymentMethodID string
	Window          time.Duration
	// Location defines "today" for the freshness check and the list window.
	Location *time.Location
}

// DefaultReceivablesConfig returns the filter used in production.
func DefaultReceivablesConfig() ReceivablesConfig {
	return ReceivablesConfig{
		Situations:      []string{"1"},
		DateFilterType:  "E",
		PaymentMethodID: "4951136",
		Window:          30 * 24 * time.Hour,
		Location:        time.Local,
	}
}

// ReceivablesResult is the outcome of one receivables sync.
type ReceivablesResult struct {
	Result
	// Records is the new set, or the persisted set when Fresh.
	Records []model.ReceivableRecord
	// Fresh is true when today's data was already stored and nothing was fetched.
	Fresh bool
	// MissingDetails counts ids whose detail call failed.
	MissingDetails int
	Issues         []model.ReceivableIssue
}

// ReceivablesSync mirrors recent receivables into a collection.
type ReceivablesSync struct {
	api   ReceivablesAPI
	coll  repository.Collection[model.ReceivableRecord]
	cfg   ReceivablesConfig
	clock clock.Clock
	log   zerolog.Logger
}

// NewReceivablesSync builds a ReceivablesSync.
func NewReceivablesSync(api ReceivablesAPI, coll repository.Collection[model.ReceivableRecord], cfg ReceivablesConfig, clk clock.Clock) *ReceivablesSync {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &ReceivablesSync{
		api:   api,
		coll:  coll,
		cfg:   cfg,
		clock: clk,
		log:   logging.Component("Receivables"),
	}
}

// Sync runs freshness check, list, per-item details, merge and replace.
//
// A failed or empty list returns an empty result and leaves the collection
// alone. A persistence error abandons the sync; if it happens on insert the
// collection has already been emptied.
func (s *ReceivablesSync) Sync(ctx context.Context) (*ReceivablesResult, error) {
	res := &ReceivablesResult{Result: Result{Entity: model.EntityReceivables}}

	now := s.clock.Now().In(s.cfg.Location)
	today := startOfDay(now)

	fresh, err := s.coll.Find(ctx, repository.Filter{Field: "CREmissao", Since: today})
	if err != nil {
		res.Outcome = model.OutcomeFailed
		return res, bling.NewError(bling.KindPersistence, "find fresh receivables", 0, err)
	}
	if len(fresh) > 0 {
		all, err := s.coll.Find(ctx, repository.Filter{})
		if err != nil {
			res.Outcome = model.OutcomeFailed
			return res, bling.NewError(bling.KindPersistence, "find receivables", 0, err)
		}
		s.log.Info().Int("fresh", len(fresh)).Int("stored", len(all)).Msg("receivables already synced today")
		res.Outcome = model.OutcomeSkipped
		res.Fresh = true
		res.Records = all
		res.Count = len(all)
		return res, nil
	}

	query := bling.ReceivableQuery{
		Situations:      s.cfg.Situations,
		DateFilterType:  s.cfg.DateFilterType,
		From:            now.Add(-s.cfg.Window),
		To:              now,
		PaymentMethodID: s.cfg.PaymentMethodID,
	}

	summaries, err := s.api.ListReceivables(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch receivables list")
		res.Outcome = model.OutcomeFailed
		return res, err
	}
	summaries = dedupe(summaries)
	if len(summaries) == 0 {
		s.log.Warn().Msg("no receivable data found")
		res.Outcome = model.OutcomeSkipped
		return res, nil
	}

	s.log.Info().Int("count", len(summaries)).Msg("fetching receivable details")

	syncedAt := s.clock.Now()
	records := make([]model.ReceivableRecord, 0, len(summaries))
	for _, sum := range summaries {
		if err := ctx.Err(); err != nil {
			res.Outcome = model.OutcomeFailed
			return res, err
		}

		detail, err := s.api.GetReceivable(ctx, sum.ID)
		if err != nil {
			s.log.Warn().Err(err).Int64("id", sum.ID).Msg("failed to fetch receivable detail")
			res.MissingDetails++
			detail = nil
		}

		rec, issues := MergeReceivable(sum, detail, s.api.Tenant(), syncedAt, s.cfg.Location)
		for _, is := range issues {
			metrics.CoercionIssuesTotal.WithLabelValues(is.Field).Inc()
		}
		res.Issues = append(res.Issues, issues...)
		records = append(records, rec)
	}

	if _, err := s.coll.DeleteMany(ctx); err != nil {
		res.Outcome = model.OutcomeFailed
		return res, bling.NewError(bling.KindPersistence, "delete receivables", 0, err)
	}
	if err := s.coll.InsertMany(ctx, records); err != nil {
		res.Outcome = model.OutcomeFailed
		return res, bling.NewError(bling.KindPersistence, "insert receivables", 0, err)
	}

	s.log.Info().
		Int("count", len(records)).
		Int("missing_details", res.MissingDetails).
		Int("issues", len(res.Issues)).
		Msg("receivables replaced")

	res.Outcome = model.OutcomeSynced
	res.Records = records
	res.Count = len(records)
	res.IssueCount = len(res.Issues) + res.MissingDetails
	return res, nil
}

// Stored returns the persisted receivables.
func (s *ReceivablesSync) Stored(ctx context.Context) ([]model.ReceivableRecord, error) {
	recs, err := s.coll.Find(ctx, repository.Filter{})
	if err != nil {
		return nil, bling.NewError(bling.KindPersistence, "find receivables", 0, err)
	}
	return recs, nil
}

// dedupe keeps the first summary for each id.
func dedupe(in []model.ReceivableSummary) []model.ReceivableSummary {
	seen := make(map[int64]struct{}, len(in))
	out := make([]model.ReceivableSummary, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
