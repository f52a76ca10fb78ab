package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/model"
	"bling-mirror/internal/repository"
)

// Result summarises one entity sync.
type Result struct {
	Entity     string            `json:"entity"`
	Outcome    model.SyncOutcome `json:"outcome"`
	Count      int               `json:"count"`
	IssueCount int               `json:"issues"`
}

// MirrorAPI is the part of the Bling client the flat mirrors use.
type MirrorAPI interface {
	Tenant() string
	ListSellers(ctx context.Context) ([]bling.Object, error)
	ListModules(ctx context.Context) ([]bling.Object, error)
	ListModuleSituations(ctx context.Context, moduleID string) ([]bling.Object, error)
	ListPaymentMethods(ctx context.Context) ([]bling.Object, error)
}

// MirrorCollections are the destinations of the flat mirrors.
type MirrorCollections struct {
	Sellers        repository.Collection[model.Document]
	Modules        repository.Collection[model.Document]
	PaymentMethods repository.Collection[model.Document]
}

// MirrorSync replaces the sellers, module situations and payment methods
// collections with the current upstream lists.
type MirrorSync struct {
	api   MirrorAPI
	colls MirrorCollections
	log   zerolog.Logger
}

// NewMirrorSync builds a MirrorSync.
func NewMirrorSync(api MirrorAPI, colls MirrorCollections) *MirrorSync {
	return &MirrorSync{api: api, colls: colls, log: logging.Component("Mirrors")}
}

// SyncSellers mirrors active sellers. Nested loja/contato objects are
// flattened and contato_nome becomes CRVendedor.
func (m *MirrorSync) SyncSellers(ctx context.Context) (*Result, error) {
	objs, err := m.api.ListSellers(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to fetch sellers")
		return &Result{Entity: model.EntitySellers, Outcome: model.OutcomeFailed}, err
	}

	docs := make([]model.Document, 0, len(objs))
	for _, obj := range objs {
		doc := toDocument(obj)
		if name, ok := doc["contato_nome"]; ok {
			doc["CRVendedor"] = name
			delete(doc, "contato_nome")
		}
		docs = append(docs, doc)
	}

	return m.replace(ctx, model.EntitySellers, m.colls.Sellers, docs)
}

// SyncModules mirrors every module's situations, each joined with its module
// and tagged with module_id and bling_endpoint. Modules without situations
// are dropped. Colliding situation keys get a "_Situacoes" suffix.
func (m *MirrorSync) SyncModules(ctx context.Context) (*Result, error) {
	modules, err := m.api.ListModules(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to fetch modules")
		return &Result{Entity: model.EntityModules, Outcome: model.OutcomeFailed}, err
	}
	if len(modules) == 0 {
		m.log.Warn().Msg("no modules data found")
		return &Result{Entity: model.EntityModules, Outcome: model.OutcomeSkipped}, nil
	}

	var (
		docs   []model.Document
		issues int
	)
	for _, mod := range modules {
		moduleDoc := toDocument(mod)
		moduleID := moduleDoc["id"]
		if moduleID == "" {
			issues++
			continue
		}

		situations, err := m.api.ListModuleSituations(ctx, moduleID)
		if err != nil {
			m.log.Warn().Err(err).Str("module_id", moduleID).Msg("failed to fetch module situations")
			issues++
			continue
		}

		for _, sit := range situations {
			doc := make(model.Document, len(moduleDoc)+len(sit)+2)
			for k, v := range moduleDoc {
				doc[k] = v
			}
			for k, v := range toDocument(sit) {
				if _, clash := moduleDoc[k]; clash {
					k += "_Situacoes"
				}
				doc[k] = v
			}
			doc["module_id"] = moduleID
			doc["bling_endpoint"] = m.api.Tenant()
			docs = append(docs, doc)
		}
	}

	if len(docs) == 0 {
		m.log.Warn().Msg("no situacoes data found")
		return &Result{Entity: model.EntityModules, Outcome: model.OutcomeSkipped, IssueCount: issues}, nil
	}

	res, err := m.replace(ctx, model.EntityModules, m.colls.Modules, docs)
	if res != nil {
		res.IssueCount = issues
	}
	return res, err
}

// SyncPaymentMethods mirrors the payment methods.
func (m *MirrorSync) SyncPaymentMethods(ctx context.Context) (*Result, error) {
	objs, err := m.api.ListPaymentMethods(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to fetch payment methods")
		return &Result{Entity: model.EntityPaymentMethods, Outcome: model.OutcomeFailed}, err
	}

	docs := make([]model.Document, 0, len(objs))
	for _, obj := range objs {
		docs = append(docs, toDocument(obj))
	}

	return m.replace(ctx, model.EntityPaymentMethods, m.colls.PaymentMethods, docs)
}

// replace deletes and re-inserts a mirror. An empty upstream list keeps the
// stored data.
func (m *MirrorSync) replace(ctx context.Context, entity string, coll repository.Collection[model.Document], docs []model.Document) (*Result, error) {
	res := &Result{Entity: entity}

	if len(docs) == 0 {
		m.log.Warn().Str("entity", entity).Msg("upstream returned no data, keeping stored mirror")
		res.Outcome = model.OutcomeSkipped
		return res, nil
	}

	deleted, err := coll.DeleteMany(ctx)
	if err != nil {
		res.Outcome = model.OutcomeFailed
		return res, bling.NewError(bling.KindPersistence, "delete "+entity, 0, err)
	}
	if err := coll.InsertMany(ctx, docs); err != nil {
		res.Outcome = model.OutcomeFailed
		return res, bling.NewError(bling.KindPersistence, "insert "+entity, 0, err)
	}

	m.log.Info().Str("entity", entity).Int64("deleted", deleted).Int("inserted", len(docs)).Msg("mirror replaced")

	res.Outcome = model.OutcomeSynced
	res.Count = len(docs)
	return res, nil
}

// toDocument flattens obj with "_" and stringifies every value.
func toDocument(obj bling.Object) model.Document {
	row := bling.Flatten(obj, "_")
	doc := make(model.Document, len(row))
	for k, v := range row {
		doc[strings.ReplaceAll(k, ".", "_")] = bling.AsString(v)
	}
	return doc
}
