package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/model"
	"bling-mirror/internal/repository"
)

// memCollection is an in-memory Collection. dateOf extracts the field used by
// date filters.
type memCollection[T any] struct {
	mu        sync.Mutex
	docs      []T
	dateOf    func(T) *time.Time
	findErr   error
	deleteErr error
	insertErr error
	deletes   int
}

func (c *memCollection[T]) Find(_ context.Context, f repository.Filter) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return nil, c.findErr
	}
	out := make([]T, 0, len(c.docs))
	for _, d := range c.docs {
		if f.Field != "" {
			t := c.dateOf(d)
			if t == nil || t.Before(f.Since) {
				continue
			}
		}
		out = append(out, d)
	}
	if f.Newest {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (c *memCollection[T]) Count(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

func (c *memCollection[T]) DeleteMany(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return 0, c.deleteErr
	}
	c.deletes++
	n := int64(len(c.docs))
	c.docs = nil
	return n, nil
}

func (c *memCollection[T]) InsertMany(_ context.Context, docs []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.insertErr != nil {
		return c.insertErr
	}
	c.docs = append(c.docs, docs...)
	return nil
}

func newReceivableColl(docs ...model.ReceivableRecord) *memCollection[model.ReceivableRecord] {
	return &memCollection[model.ReceivableRecord]{
		docs:   docs,
		dateOf: func(r model.ReceivableRecord) *time.Time { return r.CREmissao },
	}
}

// fakeAPI serves canned Bling data and counts calls.
type fakeAPI struct {
	mu sync.Mutex

	summaries []model.ReceivableSummary
	details   map[int64]model.Row
	listErr   error
	lastQuery bling.ReceivableQuery

	sellers    []bling.Object
	modules    []bling.Object
	situations map[string][]bling.Object
	payments   []bling.Object
	mirrorErr  error

	calls int
}

func (f *fakeAPI) Tenant() string { return "storeA" }

func (f *fakeAPI) call() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAPI) ListReceivables(_ context.Context, q bling.ReceivableQuery) ([]model.ReceivableSummary, error) {
	f.call()
	f.lastQuery = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.summaries, nil
}

func (f *fakeAPI) GetReceivable(_ context.Context, id int64) (*model.ReceivableDetail, error) {
	f.call()
	row, ok := f.details[id]
	if !ok {
		return nil, bling.NewError(bling.KindUpstream, "GET /contas/receber/x", 404, errors.New("not found"))
	}
	return &model.ReceivableDetail{ID: id, Fields: row}, nil
}

func (f *fakeAPI) ListSellers(context.Context) ([]bling.Object, error) {
	f.call()
	return f.sellers, f.mirrorErr
}

func (f *fakeAPI) ListModules(context.Context) ([]bling.Object, error) {
	f.call()
	return f.modules, f.mirrorErr
}

func (f *fakeAPI) ListModuleSituations(_ context.Context, id string) ([]bling.Object, error) {
	f.call()
	sits, ok := f.situations[id]
	if !ok {
		return nil, bling.NewError(bling.KindUpstream, "GET /situacoes/modulos/"+id, 500, nil)
	}
	return sits, nil
}

func (f *fakeAPI) ListPaymentMethods(context.Context) ([]bling.Object, error) {
	f.call()
	return f.payments, f.mirrorErr
}
