package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/clock"
	"bling-mirror/internal/model"
)

var now = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newSync(api *fakeAPI, coll *memCollection[model.ReceivableRecord]) *ReceivablesSync {
	cfg := DefaultReceivablesConfig()
	cfg.Location = time.UTC
	return NewReceivablesSync(api, coll, cfg, clock.NewFake(now))
}

func summary(id int64, fields map[string]any) model.ReceivableSummary {
	row := model.Row{"id": json.Number(strconv.FormatInt(id, 10))}
	for k, v := range fields {
		row[k] = v
	}
	return model.ReceivableSummary{ID: id, Fields: row}
}

func tp(t time.Time) *time.Time { return &t }

func TestReceivablesSync_LeftJoinAndReplace(t *testing.T) {
	api := &fakeAPI{
		summaries: []model.ReceivableSummary{
			summary(1, map[string]any{"situacao": json.Number("1"), "valor": json.Number("10.50"), "dataEmissao": "2024-02-20", "vencimento": "2024-03-20", "vendedor.id": json.Number("7")}),
			summary(2, map[string]any{"situacao": json.Number("1"), "valor": json.Number("99")}),
		},
		details: map[int64]model.Row{
			1: {"id": json.Number("1"), "contato.nome": "Ana", "numeroDocumento": "1001/2", "saldo": json.Number("5.25")},
		},
	}
	old := newReceivableColl(
		model.ReceivableRecord{CRParcelaID: 90, CREmissao: tp(now.AddDate(0, 0, -1))},
		model.ReceivableRecord{CRParcelaID: 91},
		model.ReceivableRecord{CRParcelaID: 92},
	)

	res, err := newSync(api, old).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSynced, res.Outcome)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.MissingDetails)
	assert.Equal(t, 3, api.Calls(), "one list call and one detail call per id")

	require.Len(t, old.docs, 2, "collection holds exactly the new set")
	assert.Equal(t, 1, old.deletes)

	first := old.docs[0]
	assert.Equal(t, int64(1), first.CRParcelaID)
	assert.Equal(t, "storeA", first.Tenant)
	assert.True(t, first.CRDetalhe)
	require.NotNil(t, first.CRValorParcela)
	assert.Equal(t, 10.5, *first.CRValorParcela)
	require.NotNil(t, first.CRSaldoVenda)
	assert.Equal(t, 5.25, *first.CRSaldoVenda)
	require.NotNil(t, first.CRContatoNome)
	assert.Equal(t, "Ana", *first.CRContatoNome)
	require.NotNil(t, first.CRPedidoNumero)
	assert.Equal(t, "1001", *first.CRPedidoNumero)
	require.NotNil(t, first.DataControle)
	assert.Equal(t, int64(20240220), *first.DataControle)
	require.NotNil(t, first.CRVendedorID)
	assert.Equal(t, int64(7), *first.CRVendedorID)

	second := old.docs[1]
	assert.False(t, second.CRDetalhe, "missing detail keeps the summary row")
	assert.Nil(t, second.CRContatoNome)
	assert.Nil(t, second.CREmissao)
	assert.Nil(t, second.DataControle)
}

func TestReceivablesSync_ListQuery(t *testing.T) {
	api := &fakeAPI{}
	_, err := newSync(api, newReceivableColl()).Sync(context.Background())
	require.NoError(t, err)

	q := api.lastQuery.Params()
	assert.Equal(t, "1", q.Get("situacoes[]"))
	assert.Equal(t, "E", q.Get("tipoFiltroData"))
	assert.Equal(t, "2024-01-31", q.Get("dataInicial"))
	assert.Equal(t, "2024-03-01", q.Get("dataFinal"))
	assert.Equal(t, "4951136", q.Get("idFormaPagamento"))
}

func TestReceivablesSync_FreshDataShortCircuits(t *testing.T) {
	api := &fakeAPI{summaries: []model.ReceivableSummary{summary(1, nil)}}
	coll := newReceivableColl(
		model.ReceivableRecord{CRParcelaID: 10, CREmissao: tp(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))},
		model.ReceivableRecord{CRParcelaID: 11, CREmissao: tp(now.AddDate(0, 0, -3))},
	)

	res, err := newSync(api, coll).Sync(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Fresh)
	assert.Equal(t, model.OutcomeSkipped, res.Outcome)
	assert.Zero(t, api.Calls(), "no upstream calls when today's data is stored")
	assert.Len(t, res.Records, 2, "full persisted set is returned")
	assert.Zero(t, coll.deletes)
}

func TestReceivablesSync_MidnightIsFresh(t *testing.T) {
	api := &fakeAPI{}
	coll := newReceivableColl(model.ReceivableRecord{CRParcelaID: 1, CREmissao: tp(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))})

	res, err := newSync(api, coll).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Fresh)
}

func TestReceivablesSync_EmptyListKeepsStoredData(t *testing.T) {
	api := &fakeAPI{}
	coll := newReceivableColl(model.ReceivableRecord{CRParcelaID: 5})

	res, err := newSync(api, coll).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSkipped, res.Outcome)
	assert.Empty(t, res.Records)
	assert.Len(t, coll.docs, 1)
	assert.Zero(t, coll.deletes)
}

func TestReceivablesSync_ListFailure(t *testing.T) {
	api := &fakeAPI{listErr: bling.NewError(bling.KindUpstream, "GET /contas/receber", 401, nil)}
	coll := newReceivableColl(model.ReceivableRecord{CRParcelaID: 5})

	res, err := newSync(api, coll).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, bling.IsKind(err, bling.KindUpstream))
	assert.Equal(t, model.OutcomeFailed, res.Outcome)
	assert.Empty(t, res.Records)
	assert.Len(t, coll.docs, 1)
}

func TestReceivablesSync_PersistenceErrors(t *testing.T) {
	t.Run("freshness check", func(t *testing.T) {
		api := &fakeAPI{summaries: []model.ReceivableSummary{summary(1, nil)}}
		coll := newReceivableColl()
		coll.findErr = errors.New("connection reset")

		_, err := newSync(api, coll).Sync(context.Background())
		assert.True(t, bling.IsKind(err, bling.KindPersistence))
		assert.Zero(t, api.Calls())
	})

	t.Run("insert", func(t *testing.T) {
		api := &fakeAPI{summaries: []model.ReceivableSummary{summary(1, nil)}}
		coll := newReceivableColl()
		coll.insertErr = errors.New("disk full")

		res, err := newSync(api, coll).Sync(context.Background())
		assert.True(t, bling.IsKind(err, bling.KindPersistence))
		assert.Equal(t, model.OutcomeFailed, res.Outcome)
	})
}

func TestReceivablesSync_InvalidValuesBecomeNull(t *testing.T) {
	api := &fakeAPI{
		summaries: []model.ReceivableSummary{
			summary(1, map[string]any{"valor": "abc", "vencimento": "31/02/2024", "saldo": "12.5"}),
		},
		details: map[int64]model.Row{},
	}
	coll := newReceivableColl()

	res, err := newSync(api, coll).Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, coll.docs, 1)

	rec := coll.docs[0]
	assert.Nil(t, rec.CRValorParcela)
	assert.Nil(t, rec.CRVenc)
	require.NotNil(t, rec.CRSaldoVenda)
	assert.Equal(t, 12.5, *rec.CRSaldoVenda)

	fields := make([]string, 0, len(res.Issues))
	for _, is := range res.Issues {
		fields = append(fields, is.Field)
	}
	assert.ElementsMatch(t, []string{"valor", "vencimento"}, fields)
}

func TestReceivablesSync_DuplicateIDsFetchedOnce(t *testing.T) {
	api := &fakeAPI{
		summaries: []model.ReceivableSummary{
			summary(1, map[string]any{"valor": json.Number("1")}),
			summary(1, map[string]any{"valor": json.Number("2")}),
		},
		details: map[int64]model.Row{1: {}},
	}
	coll := newReceivableColl()

	_, err := newSync(api, coll).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, api.Calls())
	require.Len(t, coll.docs, 1)
	assert.Equal(t, 1.0, *coll.docs[0].CRValorParcela, "first occurrence wins")
}
