package model

import "time"

// Row is one upstream object flattened with dotted keys, e.g. "vendedor.id".
type Row map[string]any

// ReceivableSummary is one row of the receivables list endpoint.
type ReceivableSummary struct {
	ID     int64
	Fields Row
}

// ReceivableDetail is the per-id detail payload for a receivable.
type ReceivableDetail struct {
	ID     int64
	Fields Row
}

// ReceivableRecord is the persisted, typed form of a merged receivable.
// Nil pointers are fields that were absent upstream or failed coercion.
type ReceivableRecord struct {
	CRParcelaID      int64      `json:"CRParcelaID" bson:"CRParcelaID"`
	Tenant           string     `json:"tenant" bson:"tenant"`
	CRSituacao       *int64     `json:"CRSituacao" bson:"CRSituacao"`
	CRVenc           *time.Time `json:"CRVenc" bson:"CRVenc"`
	CRValorParcela   *float64   `json:"CRValorParcela" bson:"CRValorParcela"`
	CREmissao        *time.Time `json:"CREmissao" bson:"CREmissao"`
	CRSaldoVenda     *float64   `json:"CRSaldoVenda" bson:"CRSaldoVenda"`
	CRVendedorID     *int64     `json:"CRVendedorID" bson:"CRVendedorID"`
	CRFormaPagamento *int64     `json:"CRFormaPagamento" bson:"CRFormaPagamento"`
	CRContatoID      *int64     `json:"CRContatoID" bson:"CRContatoID"`

	// Detail-only columns.
	CRContatoNome     *string    `json:"CRContatoNome" bson:"CRContatoNome"`
	CRNumeroDocumento *string    `json:"CRNumeroDocumento" bson:"CRNumeroDocumento"`
	CRPedidoNumero    *string    `json:"CRPedidoNº" bson:"CRPedidoNº"`
	CRVencOriginal    *time.Time `json:"CRVencOriginal" bson:"CRVencOriginal"`
	CRCompetencia     *time.Time `json:"CRCompetencia" bson:"CRCompetencia"`
	CRHistorico       *string    `json:"CRHistorico" bson:"CRHistorico"`
	CRPortadorID      *int64     `json:"CRPortadorID" bson:"CRPortadorID"`
	CRCategoriaID     *int64     `json:"CRCategoriaID" bson:"CRCategoriaID"`
	CRContaContabilID *int64     `json:"CRContaContabilID" bson:"CRContaContabilID"`
	CROrigemTipo      *string    `json:"CROrigemTipo" bson:"CROrigemTipo"`
	CROrigemNumero    *string    `json:"CROrigemNumero" bson:"CROrigemNumero"`
	CRLinkBoleto      *string    `json:"CRLinkBoleto" bson:"CRLinkBoleto"`

	// DataControle is CREmissao as a YYYYMMDD integer.
	DataControle *int64    `json:"DataControle" bson:"DataControle"`
	CRDetalhe    bool      `json:"CRDetalhe" bson:"CRDetalhe"`
	SyncedAt     time.Time `json:"syncedAt" bson:"syncedAt"`
}

// ReceivableIssue counts a value that could not be coerced and was stored as null.
type ReceivableIssue struct {
	ID    int64  `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}
