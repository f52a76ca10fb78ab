package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"bling-mirror/internal/model"
)

// ReceivablesReport renders stored receivables as tables. Dates are printed
// as calendar days in loc, the zone the sync uses for "today".
type ReceivablesReport struct {
	loc *time.Location
}

// NewReceivablesReport creates a report rendering dates in loc (time.Local if nil).
func NewReceivablesReport(loc *time.Location) *ReceivablesReport {
	if loc == nil {
		loc = time.Local
	}
	return &ReceivablesReport{loc: loc}
}

// Frame loads records into a string-typed dataframe with one column per
// ReceivableColumnNames entry. Nulls become empty cells.
func (rp *ReceivablesReport) Frame(recs []model.ReceivableRecord) dataframe.DataFrame {
	records := make([][]string, 0, len(recs)+1)
	records = append(records, ReceivableColumnNames)
	for i := range recs {
		records = append(records, rp.cells(&recs[i]))
	}
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

// WriteCSV writes recs as CSV. columns selects and orders the output; empty
// means every column.
func (rp *ReceivablesReport) WriteCSV(w io.Writer, recs []model.ReceivableRecord, columns []string) error {
	for _, c := range columns {
		if !IsReceivableColumn(c) {
			return fmt.Errorf("unknown column %q", c)
		}
	}

	if len(recs) == 0 {
		header := ReceivableColumnNames
		if len(columns) > 0 {
			header = columns
		}
		_, err := io.WriteString(w, strings.Join(header, ",")+"\n")
		return err
	}

	df := rp.Frame(recs)
	if len(columns) > 0 {
		df = df.Select(columns)
	}
	if df.Err != nil {
		return fmt.Errorf("error building dataframe: %w", df.Err)
	}

	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	return nil
}

// IsReceivableColumn reports whether name is an exported receivable column.
func IsReceivableColumn(name string) bool {
	for _, c := range ReceivableColumnNames {
		if c == name {
			return true
		}
	}
	return false
}

func (rp *ReceivablesReport) cells(r *model.ReceivableRecord) []string {
	return []string{
		strconv.FormatInt(r.CRParcelaID, 10),
		intCell(r.CRSituacao),
		rp.dateCell(r.CRVenc),
		floatCell(r.CRValorParcela),
		rp.dateCell(r.CREmissao),
		floatCell(r.CRSaldoVenda),
		intCell(r.CRVendedorID),
		intCell(r.CRFormaPagamento),
		intCell(r.CRContatoID),
		strCell(r.CRContatoNome),
		strCell(r.CRNumeroDocumento),
		strCell(r.CRPedidoNumero),
		rp.dateCell(r.CRVencOriginal),
		rp.dateCell(r.CRCompetencia),
		strCell(r.CRHistorico),
		intCell(r.CRPortadorID),
		intCell(r.CRCategoriaID),
		intCell(r.CRContaContabilID),
		strCell(r.CROrigemTipo),
		strCell(r.CROrigemNumero),
		strCell(r.CRLinkBoleto),
		intCell(r.DataControle),
		strconv.FormatBool(r.CRDetalhe),
	}
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// dateCell converts to loc first: the Mongo driver decodes every time.Time
// as UTC, which would shift local midnights to the previous day.
func (rp *ReceivablesReport) dateCell(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.In(rp.loc).Format(time.DateOnly)
}

func strCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
