package service

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/model"
)

// column maps one flattened upstream field onto a record field. The target's
// type decides the coercion: *int64 ids, *float64 money, *time.Time dates,
// *string text.
type column struct {
	from string
	to   func(r *model.ReceivableRecord) any
}

// receivableColumns is the rename table. Fields absent upstream stay nil.
var receivableColumns = []column{
	{"situacao", func(r *model.ReceivableRecord) any { return &r.CRSituacao }},
	{"vencimento", func(r *model.ReceivableRecord) any { return &r.CRVenc }},
	{"valor", func(r *model.ReceivableRecord) any { return &r.CRValorParcela }},
	{"dataEmissao", func(r *model.ReceivableRecord) any { return &r.CREmissao }},
	{"saldo", func(r *model.ReceivableRecord) any { return &r.CRSaldoVenda }},
	{"vendedor.id", func(r *model.ReceivableRecord) any { return &r.CRVendedorID }},
	{"formaPagamento.id", func(r *model.ReceivableRecord) any { return &r.CRFormaPagamento }},
	{"contato.id", func(r *model.ReceivableRecord) any { return &r.CRContatoID }},

	{"contato.nome", func(r *model.ReceivableRecord) any { return &r.CRContatoNome }},
	{"numeroDocumento", func(r *model.ReceivableRecord) any { return &r.CRNumeroDocumento }},
	{"vencimentoOriginal", func(r *model.ReceivableRecord) any { return &r.CRVencOriginal }},
	{"competencia", func(r *model.ReceivableRecord) any { return &r.CRCompetencia }},
	{"historico", func(r *model.ReceivableRecord) any { return &r.CRHistorico }},
	{"portador.id", func(r *model.ReceivableRecord) any { return &r.CRPortadorID }},
	{"categoria.id", func(r *model.ReceivableRecord) any { return &r.CRCategoriaID }},
	{"contaContabil.id", func(r *model.ReceivableRecord) any { return &r.CRContaContabilID }},
	{"origem.tipoOrigem", func(r *model.ReceivableRecord) any { return &r.CROrigemTipo }},
	{"origem.numero", func(r *model.ReceivableRecord) any { return &r.CROrigemNumero }},
	{"linkBoleto", func(r *model.ReceivableRecord) any { return &r.CRLinkBoleto }},
}

// ReceivableColumnNames lists the persisted names in table order.
var ReceivableColumnNames = []string{
	"CRParcelaID", "CRSituacao", "CRVenc", "CRValorParcela", "CREmissao", "CRSaldoVenda",
	"CRVendedorID", "CRFormaPagamento", "CRContatoID", "CRContatoNome", "CRNumeroDocumento",
	"CRPedidoNº", "CRVencOriginal", "CRCompetencia", "CRHistorico", "CRPortadorID",
	"CRCategoriaID", "CRContaContabilID", "CROrigemTipo", "CROrigemNumero", "CRLinkBoleto",
	"DataControle", "CRDetalhe",
}

// MergeReceivable left-joins a summary with its optional detail and builds
// the typed record. Summary values win over detail values for the same key.
// Values that fail coercion are stored as nil and reported as issues.
func MergeReceivable(s model.ReceivableSummary, d *model.ReceivableDetail, tenant string, syncedAt time.Time, loc *time.Location) (model.ReceivableRecord, []model.ReceivableIssue) {
	merged := make(model.Row, len(s.Fields))
	if d != nil {
		for k, v := range d.Fields {
			merged[k] = v
		}
	}
	for k, v := range s.Fields {
		merged[k] = v
	}

	rec := model.ReceivableRecord{
		CRParcelaID: s.ID,
		Tenant:      tenant,
		CRDetalhe:   d != nil,
		SyncedAt:    syncedAt,
	}

	var issues []model.ReceivableIssue
	for _, col := range receivableColumns {
		v, ok := merged[col.from]
		if !ok || v == nil {
			continue
		}
		if !assign(col.to(&rec), v, loc) {
			issues = append(issues, model.ReceivableIssue{ID: s.ID, Field: col.from, Value: bling.AsString(v)})
		}
	}

	rec.CRPedidoNumero = orderNumber(rec.CRNumeroDocumento)
	rec.DataControle = controlDate(rec.CREmissao)

	return rec, issues
}

// assign coerces v into dst and reports false when v was present but invalid.
func assign(dst any, v any, loc *time.Location) bool {
	switch p := dst.(type) {
	case **int64:
		n, ok := coerceInt(v)
		*p = n
		return ok
	case **float64:
		f, ok := coerceNumber(v)
		*p = f
		return ok
	case **time.Time:
		t, ok := coerceDate(v, loc)
		*p = t
		return ok
	case **string:
		s := strings.TrimSpace(bling.AsString(v))
		if s != "" {
			*p = &s
		}
		return true
	default:
		return false
	}
}

func coerceInt(v any) (*int64, bool) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, true
	}
	n, ok := bling.AsInt64(v)
	if !ok {
		return nil, false
	}
	return &n, true
}

// coerceNumber parses money and quantities. Unparseable input becomes nil.
func coerceNumber(v any) (*float64, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, true
		}
		d, err = decimal.NewFromString(s)
	case float64:
		d = decimal.NewFromFloat(n)
	case int64:
		d = decimal.NewFromInt(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	f := d.InexactFloat64()
	return &f, true
}

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
}

// coerceDate parses upstream dates. Bling sends "0000-00-00" for empty dates.
func coerceDate(v any, loc *time.Location) (*time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil, true
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// orderNumber is the part of numeroDocumento before the first "/".
func orderNumber(doc *string) *string {
	if doc == nil {
		return nil
	}
	head, _, _ := strings.Cut(*doc, "/")
	head = strings.TrimSpace(head)
	if head == "" {
		return nil
	}
	return &head
}

// controlDate renders the issue date as YYYYMMDD.
func controlDate(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
	return &n
}
