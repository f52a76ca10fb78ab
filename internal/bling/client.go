package bling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"bling-mirror/internal/logging"
	"bling-mirror/internal/model"
)

// Getter is the transport contract: get(url, headers, params).
type Getter interface {
	Get(ctx context.Context, rawURL string, header http.Header, params url.Values) (*Response, error)
}

// Object is one decoded JSON object with numbers kept as json.Number.
type Object = map[string]any

// Client exposes the Bling v3 endpoints the mirror needs. Every call builds
// fresh headers and goes through the shared Getter.
type Client struct {
	baseURL   string
	tenant    string
	transport Getter
	headers   *HeaderBuilder
	log       zerolog.Logger
}

// NewClient builds a Client for one tenant.
func NewClient(baseURL, tenant string, transport Getter, headers *HeaderBuilder) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tenant:    tenant,
		transport: transport,
		headers:   headers,
		log:       logging.Component("BlingClient"),
	}
}

// Tenant returns the configured tenant identifier.
func (c *Client) Tenant() string { return c.tenant }

// ReceivablePageSize is the number of rows /contas/receber returns per page
// when no limite is sent.
const ReceivablePageSize = 100

// ReceivableQuery holds the list filter for /contas/receber.
type ReceivableQuery struct {
	Situations      []string
	DateFilterType  string // "E" filters on issue date
	From            time.Time
	To              time.Time
	PaymentMethodID string
}

// Params encodes the query the way the endpoint expects it.
func (q ReceivableQuery) Params() url.Values {
	v := url.Values{}
	for _, s := range q.Situations {
		v.Add("situacoes[]", s)
	}
	if q.DateFilterType != "" {
		v.Set("tipoFiltroData", q.DateFilterType)
	}
	if !q.From.IsZero() {
		v.Set("dataInicial", q.From.Format(time.DateOnly))
	}
	if !q.To.IsZero() {
		v.Set("dataFinal", q.To.Format(time.DateOnly))
	}
	if q.PaymentMethodID != "" {
		v.Set("idFormaPagamento", q.PaymentMethodID)
	}
	return v
}

// Get sends an authenticated GET for path. An auth failure is logged and the
// request still goes out with "Bearer null".
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	h, err := c.headers.Build(ctx, c.tenant)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("sending request without a valid token")
	}
	return c.transport.Get(ctx, c.baseURL+path, h, params)
}

// ListReceivables fetches the receivables list. Rows are flattened with "."
// and rows without a numeric id are dropped.
func (c *Client) ListReceivables(ctx context.Context, q ReceivableQuery) ([]model.ReceivableSummary, error) {
	objs, err := c.list(ctx, "/contas/receber", q.Params())
	if err != nil {
		return nil, err
	}
	// Only the first page is requested.
	if len(objs) >= ReceivablePageSize {
		c.log.Warn().
			Int("rows", len(objs)).
			Int("page_size", ReceivablePageSize).
			Time("from", q.From).
			Time("to", q.To).
			Msg("receivables list filled a whole page, later pages are not fetched")
	}

	out := make([]model.ReceivableSummary, 0, len(objs))
	for _, obj := range objs {
		id, ok := AsInt64(obj["id"])
		if !ok {
			c.log.Warn().Interface("id", obj["id"]).Msg("skipping receivable without numeric id")
			continue
		}
		out = append(out, model.ReceivableSummary{ID: id, Fields: Flatten(obj, ".")})
	}
	return out, nil
}

// GetReceivable fetches the detail of one receivable.
func (c *Client) GetReceivable(ctx context.Context, id int64) (*model.ReceivableDetail, error) {
	path := "/contas/receber/" + strconv.FormatInt(id, 10)
	obj, err := c.object(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, NewError(KindUpstream, "GET "+path, http.StatusOK, errors.New("empty detail"))
	}
	return &model.ReceivableDetail{ID: id, Fields: Flatten(obj, ".")}, nil
}

// ListSellers fetches active sellers.
func (c *Client) ListSellers(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/vendedores", url.Values{"situacaoContato": {"A"}})
}

// ListModules fetches the module list.
func (c *Client) ListModules(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/situacoes/modulos", nil)
}

// ListModuleSituations fetches the situations of one module.
func (c *Client) ListModuleSituations(ctx context.Context, moduleID string) ([]Object, error) {
	return c.list(ctx, "/situacoes/modulos/"+url.PathEscape(moduleID), nil)
}

// ListPaymentMethods fetches the payment methods.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]Object, error) {
	return c.list(ctx, "/formas-pagamentos", nil)
}

func (c *Client) list(ctx context.Context, path string, params url.Values) ([]Object, error) {
	raw, err := c.data(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var objs []Object
	if err := decode(raw, &objs); err != nil {
		return nil, NewError(KindParse, "GET "+path, http.StatusOK, err)
	}
	return objs, nil
}

func (c *Client) object(ctx context.Context, path string, params url.Values) (Object, error) {
	raw, err := c.data(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var obj Object
	if err := decode(raw, &obj); err != nil {
		return nil, NewError(KindParse, "GET "+path, http.StatusOK, err)
	}
	return obj, nil
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// data returns the "data" member of a 200 response.
func (c *Client) data(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	resp, err := c.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, NewError(KindUpstream, "GET "+path, resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(resp.Body, 200)))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, NewError(KindParse, "GET "+path, resp.StatusCode, err)
	}
	return env.Data, nil
}

func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
