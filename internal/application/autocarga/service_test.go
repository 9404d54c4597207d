package autocarga_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeExtractor struct {
	docs  map[string]*entity.ExtractedDocument
	errs  map[string]error
	block chan struct{}
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (*entity.ExtractedDocument, error) {
	if f.block != nil {
		<-f.block
	}
	f.calls++
	name := filepath.Base(path)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	doc, ok := f.docs[name]
	if !ok {
		return &entity.ExtractedDocument{Path: path, Kind: entity.DocumentKindUnknown, Fields: map[entity.FieldLabel]string{}}, nil
	}
	out := *doc
	out.Path = path
	return &out, nil
}

type fakeParser struct {
	invoices map[string]*entity.CFDIInvoice
}

func (f *fakeParser) Parse(_ context.Context, path string) (*entity.CFDIInvoice, error) {
	c, ok := f.invoices[filepath.Base(path)]
	if !ok {
		return nil, domain.ErrMalformedDocument
	}
	out := *c
	out.Path = path
	return &out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	store     *memory.Store
	extractor *fakeExtractor
	parser    *fakeParser
	svc       *autocarga.Service
	folder    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		extractor: &fakeExtractor{docs: map[string]*entity.ExtractedDocument{}, errs: map[string]error{}},
		parser:    &fakeParser{invoices: map[string]*entity.CFDIInvoice{}},
		folder:    t.TempDir(),
	}
	f.svc = autocarga.New(
		f.store,
		f.extractor,
		f.parser,
		matching.NewProviderMatcher(matching.ProviderMatcherConfig{NameRatio: 0.8}, zerolog.Nop()),
		matching.NewInvoiceMatcher(3, zerolog.Nop()),
		autocarga.Settings{Folder: f.folder, DaysBack: 7, IncludeCFDI: true, AmountTolerance: 0.05, CandidateDays: 120},
		zerolog.Nop(),
	)
	return f
}

func (f *fixture) file(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.folder, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func (f *fixture) voucherPDF(t *testing.T, name string, fields map[entity.FieldLabel]string) {
	f.file(t, name)
	f.extractor.docs[name] = &entity.ExtractedDocument{Kind: entity.DocumentKindVoucher, Fields: fields}
}

func (f *fixture) orderPDF(t *testing.T, name string, fields map[entity.FieldLabel]string) {
	f.file(t, name)
	f.extractor.docs[name] = &entity.ExtractedDocument{Kind: entity.DocumentKindPurchaseOrder, Fields: fields}
}

func (f *fixture) seed(t *testing.T, fn func(ctx context.Context, repos autocarga.Repositories) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.RunInTx(ctx, func(repos autocarga.Repositories) error { return fn(ctx, repos) }))
}

func (f *fixture) seedProvider(t *testing.T, p *entity.Provider) {
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error { return r.Providers.Create(ctx, p) })
}

func (f *fixture) seedInvoice(t *testing.T, inv *entity.Invoice) {
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error { return r.Invoices.Create(ctx, inv) })
}

func (f *fixture) voucher(t *testing.T, number string) *entity.Voucher {
	t.Helper()
	var v *entity.Voucher
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		var err error
		v, err = r.Vouchers.GetByNumber(ctx, number)
		return err
	})
	require.NotNil(t, v, "vale %s", number)
	return v
}

func (f *fixture) order(t *testing.T, ref string) *entity.PurchaseOrder {
	t.Helper()
	var o *entity.PurchaseOrder
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		var err error
		o, err = r.PurchaseOrders.GetByReference(ctx, ref)
		return err
	})
	require.NotNil(t, o, "orden %s", ref)
	return o
}

func olek5718() *entity.Invoice {
	return &entity.Invoice{
		ID: "inv-1", ProviderID: "p1", Series: "OLEK", Number: "5718",
		IssueDate: time.Now().AddDate(0, 0, -3), Total: decimal.NewFromInt(1160),
	}
}

func noCandidates() []*entity.Invoice { return []*entity.Invoice{} }

// ── Escenarios de punta a punta ──────────────────────────────────────────────

func TestRun_ValeSeLigaAFactura(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "OLEK SA DE CV"})
	inv := olek5718()
	f.seedInvoice(t, inv)
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber:  "V-100",
		entity.FieldSourceDocument: "5718",
		entity.FieldAmountText:     "MILCIENTOSESENTAPESOS00/100MN",
		entity.FieldIssueDate:      "03/02/2025",
	})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: []*entity.Invoice{inv}}, nil)
	require.NoError(t, err)
	assert.Equal(t, autocarga.StateCompleted, report.State)

	c := report.Stats.Of(autocarga.KindVoucher)
	assert.Equal(t, 1, c.Created)
	assert.Equal(t, 1, c.Linked)
	assert.Equal(t, 0, c.Unmatched)

	v := f.voucher(t, "V-100")
	require.NotNil(t, v.InvoiceID)
	assert.Equal(t, "inv-1", *v.InvoiceID)
	require.NotNil(t, v.ProviderID, "sin proveedor resuelto se toma el de la factura")
	assert.Equal(t, "p1", *v.ProviderID)
	assert.Equal(t, "MIL CIENTO SESENTA PESOS 00/100 MN", v.AmountText)
	require.NotNil(t, v.IssueDate)
	assert.Equal(t, time.February, v.IssueDate.Month())
}

func TestRun_ValeSinCandidatosQuedaSinLiga(t *testing.T) {
	f := newFixture(t)
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber:  "V-100",
		entity.FieldSourceDocument: "5718",
	})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)

	c := report.Stats.Of(autocarga.KindVoucher)
	assert.Equal(t, 1, c.Created)
	assert.Equal(t, 1, c.Unmatched)
	assert.Nil(t, f.voucher(t, "V-100").InvoiceID)
}

func TestRun_SegundaCorridaSoloDuplicados(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "OLEK SA DE CV", ExternalCode: "C-1"})
	inv := olek5718()
	f.seedInvoice(t, inv)
	f.voucherPDF(t, "v1.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1", entity.FieldSourceDocument: "OLEK-5718"})
	f.voucherPDF(t, "v2.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-2", entity.FieldSourceDocument: "999"})
	f.orderPDF(t, "oc.pdf", map[entity.FieldLabel]string{
		entity.FieldReferenceNumber: "OC-1", entity.FieldProviderAccountCode: "C-1", entity.FieldAmount: "1,160.00",
	})
	opts := autocarga.RunOptions{Candidates: []*entity.Invoice{inv}}

	_, err := f.svc.Run(context.Background(), opts, nil)
	require.NoError(t, err)

	report, err := f.svc.Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.FilesScanned)
	assert.Empty(t, report.Errors)

	created, skipped := 0, 0
	for _, k := range autocarga.Kinds {
		c := report.Stats.Of(k)
		created += c.Created
		if k == autocarga.KindVoucher || k == autocarga.KindPurchaseOrder {
			skipped += c.SkippedDuplicate
		}
	}
	assert.Equal(t, 0, created)
	assert.Equal(t, 3, skipped)
}

func TestRun_DuplicadoSinLigaSeReliga(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "OLEK SA DE CV"})
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1", entity.FieldSourceDocument: "OLEK 5718"})

	_, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)
	require.Nil(t, f.voucher(t, "V-1").InvoiceID)

	inv := olek5718()
	f.seedInvoice(t, inv)
	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: []*entity.Invoice{inv}}, nil)
	require.NoError(t, err)

	c := report.Stats.Of(autocarga.KindVoucher)
	assert.Equal(t, 0, c.Created)
	assert.Equal(t, 1, c.SkippedDuplicate)
	assert.Equal(t, 1, c.Linked)
	require.NotNil(t, f.voucher(t, "V-1").InvoiceID)
}

func TestRun_FacturaYaLigadaNoSeReusa(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "OLEK SA DE CV"})
	inv := olek5718()
	f.seedInvoice(t, inv)
	f.voucherPDF(t, "a.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1", entity.FieldSourceDocument: "5718"})
	f.voucherPDF(t, "b.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-2", entity.FieldSourceDocument: "OLEK5718"})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: []*entity.Invoice{inv}}, nil)
	require.NoError(t, err)

	c := report.Stats.Of(autocarga.KindVoucher)
	assert.Equal(t, 2, c.Created)
	assert.Equal(t, 1, c.Linked)
	assert.Equal(t, 1, c.Unmatched)
	assert.NotNil(t, f.voucher(t, "V-1").InvoiceID)
	assert.Nil(t, f.voucher(t, "V-2").InvoiceID)
}

// ── Órdenes de compra por importe ────────────────────────────────────────────

func TestRun_OrdenDeCompraPorImporte(t *testing.T) {
	cases := []struct {
		name   string
		total  int64
		linked bool
	}{
		{"dentro de tolerancia", 1025, true},
		{"fuera de tolerancia", 1200, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedProvider(t, &entity.Provider{ID: "p1", Name: "PAPELERIA CENTRAL", ExternalCode: "C-100"})
			inv := &entity.Invoice{ID: "inv-9", ProviderID: "p1", Series: "A", Number: "9", IssueDate: time.Now(), Total: decimal.NewFromInt(tc.total)}
			f.seedInvoice(t, inv)
			f.orderPDF(t, "oc.pdf", map[entity.FieldLabel]string{
				entity.FieldReferenceNumber:     "OC-77",
				entity.FieldProviderAccountCode: "C-100",
				entity.FieldAmount:              "$1,000.00",
				entity.FieldAmountInWords:       "MILPESOS00/100MN",
				entity.FieldLedgerAccount:       "5010 GASTOS",
			})

			report, err := f.svc.Run(context.Background(), autocarga.RunOptions{}, nil)
			require.NoError(t, err)

			o := f.order(t, "OC-77")
			c := report.Stats.Of(autocarga.KindPurchaseOrder)
			assert.Equal(t, 1, c.Created)
			require.NotNil(t, o.ProviderID)
			assert.Equal(t, "p1", *o.ProviderID)
			assert.Equal(t, "MIL PESOS 00/100 MN", o.AmountInWords)
			require.NotNil(t, o.LedgerAccount)
			assert.Equal(t, 5010, *o.LedgerAccount)
			if tc.linked {
				require.NotNil(t, o.InvoiceID)
				assert.Equal(t, "inv-9", *o.InvoiceID)
				assert.Equal(t, 1, c.Linked)
			} else {
				assert.Nil(t, o.InvoiceID)
				assert.Equal(t, 1, c.Unmatched)
			}
		})
	}
}

// ── Proveedores ──────────────────────────────────────────────────────────────

func TestRun_AsignaCodigoExternoSinSobrescribir(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "Papelería Central"})
	f.seedProvider(t, &entity.Provider{ID: "p2", Name: "Transportes Águila", ExternalCode: "T-7"})
	f.voucherPDF(t, "a.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber: "V-1", entity.FieldProviderName: "PAPELERIA CENTRAL", entity.FieldProviderCode: "N-1",
	})
	f.voucherPDF(t, "b.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber: "V-2", entity.FieldProviderName: "TRANSPORTES AGUILA", entity.FieldProviderCode: "X-9",
	})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.CodesBackfilled)
	assert.Equal(t, 1, report.Stats.CodeConflicts)

	var p1, p2 *entity.Provider
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		p1, _ = r.Providers.GetByExternalCode(ctx, "N-1")
		p2, _ = r.Providers.GetByExternalCode(ctx, "T-7")
		return nil
	})
	require.NotNil(t, p1)
	assert.Equal(t, "p1", p1.ID)
	require.NotNil(t, p2)
	assert.Equal(t, "p2", p2.ID, "un código existente no se sobrescribe")
}

// countingProviders cuenta las lecturas del catálogo de proveedores.
type countingProviders struct {
	repository.ProviderRepository
	byCode  *int
	listAll *int
}

func (c countingProviders) GetByExternalCode(ctx context.Context, code string) (*entity.Provider, error) {
	*c.byCode++
	return c.ProviderRepository.GetByExternalCode(ctx, code)
}

func (c countingProviders) ListAll(ctx context.Context) ([]*entity.Provider, error) {
	*c.listAll++
	return c.ProviderRepository.ListAll(ctx)
}

type countingTx struct {
	store   *memory.Store
	byCode  int
	listAll int
}

func (c *countingTx) RunInTx(ctx context.Context, fn func(repos autocarga.Repositories) error) error {
	return c.store.RunInTx(ctx, func(r autocarga.Repositories) error {
		r.Providers = countingProviders{ProviderRepository: r.Providers, byCode: &c.byCode, listAll: &c.listAll}
		return fn(r)
	})
}

func TestRun_CodigoExternoSeBuscaSinCargarCatalogo(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "Comercial Pérez", ExternalCode: "C-100"})
	f.seedProvider(t, &entity.Provider{ID: "p2", Name: "Distribuidora del Bajío"})
	f.voucherPDF(t, "a.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber: "V-1", entity.FieldProviderCode: " C-100 ", entity.FieldProviderName: "OTRO NOMBRE",
	})
	f.voucherPDF(t, "b.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber: "V-2", entity.FieldProviderName: "DISTRIBUIDORA DEL BAJIO",
	})
	f.voucherPDF(t, "c.pdf", map[entity.FieldLabel]string{
		entity.FieldVoucherNumber: "V-3", entity.FieldProviderCode: "Z-9",
	})

	tx := &countingTx{store: f.store}
	svc := autocarga.New(
		tx, f.extractor, f.parser,
		matching.NewProviderMatcher(matching.ProviderMatcherConfig{NameRatio: 0.8}, zerolog.Nop()),
		matching.NewInvoiceMatcher(3, zerolog.Nop()),
		autocarga.Settings{Folder: f.folder, DaysBack: 7, IncludeCFDI: true, AmountTolerance: 0.05, CandidateDays: 120},
		zerolog.Nop(),
	)

	report, err := svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, tx.byCode, "V-1 y V-3 traen código")
	assert.Equal(t, 1, tx.listAll, "solo V-2 necesita los niveles por nombre")
	assert.Equal(t, 2, report.Stats.Of(autocarga.KindProvider).Linked)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindProvider).Unmatched)
	assert.Zero(t, report.Stats.CodeConflicts, "el nivel por código no reporta conflicto")

	v1 := f.voucher(t, "V-1")
	require.NotNil(t, v1.ProviderID)
	assert.Equal(t, "p1", *v1.ProviderID)
	v2 := f.voucher(t, "V-2")
	require.NotNil(t, v2.ProviderID)
	assert.Equal(t, "p2", *v2.ProviderID)
	assert.Nil(t, f.voucher(t, "V-3").ProviderID)
}

// ── CFDI ─────────────────────────────────────────────────────────────────────

func cfdi(rfc, name, series, folio string) *entity.CFDIInvoice {
	return &entity.CFDIInvoice{
		Version: "4.0", Series: series, Folio: folio,
		IssueDate: time.Now().AddDate(0, 0, -1),
		Subtotal:  decimal.NewFromInt(1000), Total: decimal.NewFromInt(1160),
		TransferredTax: decimal.NewFromInt(160),
		Issuer:         entity.CFDIParty{RFC: rfc, Name: name},
		Receiver:       entity.CFDIParty{RFC: "XAXX010101000"},
		Concepts: []entity.CFDIConcept{
			{Quantity: decimal.NewFromInt(1), Description: "Papel", UnitPrice: decimal.NewFromInt(600), Amount: decimal.NewFromInt(600)},
			{Quantity: decimal.NewFromInt(2), Description: "Tinta", UnitPrice: decimal.NewFromInt(200), Amount: decimal.NewFromInt(400)},
		},
	}
}

func TestRun_CFDIAntesDeVales(t *testing.T) {
	f := newFixture(t)
	f.file(t, "factura.xml")
	f.parser.invoices["factura.xml"] = cfdi("ABC010101XYZ", "OLEK SA DE CV", "OLEK", "5718")
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1", entity.FieldSourceDocument: "OLEK-5718"})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindInvoice).Created)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindProvider).Created)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindVoucher).Linked)

	v := f.voucher(t, "V-1")
	require.NotNil(t, v.InvoiceID)
	var concepts []*entity.Concept
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		var err error
		concepts, err = r.Invoices.ListConcepts(ctx, *v.InvoiceID)
		return err
	})
	require.Len(t, concepts, 2)
	assert.Equal(t, "Papel", concepts[0].Description)
}

func TestImportCFDI_MismoRFCNoDuplicaProveedor(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, "a.xml")
	b := f.file(t, "b.xml")
	f.parser.invoices["a.xml"] = cfdi("ABC010101XYZ", "Comercial Uno", "A", "1")
	f.parser.invoices["b.xml"] = cfdi("ABC010101XYZ", "Otro Nombre SA", "A", "2")

	r1, err := f.svc.ImportCFDI(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, r1.Created)
	assert.True(t, r1.ProviderCreated)

	r2, err := f.svc.ImportCFDI(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, r2.Created)
	assert.False(t, r2.ProviderCreated)
	assert.Equal(t, r1.ProviderID, r2.ProviderID)

	r3, err := f.svc.ImportCFDI(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, r3.Created, "misma llave natural")
	assert.Equal(t, r1.InvoiceID, r3.InvoiceID)

	var all []*entity.Provider
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		var err error
		all, err = r.Providers.ListAll(ctx)
		return err
	})
	assert.Len(t, all, 1)
}

func TestImportCFDI_AsignaRFCAProveedorPorNombre(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "Comercial Uno S.A. de C.V."})
	path := f.file(t, "a.xml")
	f.parser.invoices["a.xml"] = cfdi("CUN010101AAA", "COMERCIAL UNO", "A", "1")

	res, err := f.svc.ImportCFDI(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "p1", res.ProviderID)
	assert.False(t, res.ProviderCreated)
}

func TestImportCFDI_Malformado(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "roto.xml")

	_, err := f.svc.ImportCFDI(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	var fe *autocarga.FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, autocarga.StageParse, fe.Stage)
}

// ── Fallas parciales y configuración ─────────────────────────────────────────

func TestRun_FallaDeUnArchivoNoDetieneLaCorrida(t *testing.T) {
	f := newFixture(t)
	f.file(t, "roto.pdf")
	f.extractor.errs["roto.pdf"] = domain.ErrUnreadableDocument
	f.file(t, "otro.pdf")
	f.file(t, "sin_numero.pdf")
	f.extractor.docs["sin_numero.pdf"] = &entity.ExtractedDocument{Kind: entity.DocumentKindVoucher, Fields: map[entity.FieldLabel]string{}}
	f.file(t, "roto.xml")
	f.file(t, "notas.txt")
	f.voucherPDF(t, "zz.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-9"})

	var seen []int
	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, func(processed, total int) {
		seen = append(seen, processed)
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)
	assert.Equal(t, autocarga.StateCompleted, report.State)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)

	assert.Equal(t, 5, report.Stats.FilesScanned)
	assert.Equal(t, 1, report.Stats.FilesSkipped, "layout desconocido")
	require.Len(t, report.Errors, 3)
	stages := map[autocarga.Stage]int{}
	for _, e := range report.Errors {
		stages[e.Stage]++
	}
	assert.Equal(t, 1, stages[autocarga.StageParse])
	assert.Equal(t, 2, stages[autocarga.StageExtract])
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindVoucher).Created)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindVoucher).Errored)
	assert.Equal(t, len(report.Errors), report.Stats.FilesErrored)
	assert.Contains(t, report.Text(), "roto.pdf")
}

func TestRun_PDFIlegibleCuentaComoArchivoConError(t *testing.T) {
	f := newFixture(t)
	f.file(t, "roto.pdf")
	f.extractor.errs["roto.pdf"] = domain.ErrUnreadableDocument

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Stats.FilesErrored)
	for _, k := range autocarga.Kinds {
		assert.Zero(t, report.Stats.Of(k).Errored, "sin tipo no se asigna a %s", k)
	}
	assert.Contains(t, report.Text(), "0 omitidos, 1 con error")
}

func TestRun_FiltraPorFechaDeModificacion(t *testing.T) {
	f := newFixture(t)
	f.voucherPDF(t, "viejo.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-OLD"})
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(filepath.Join(f.folder, "viejo.pdf"), old, old))
	f.voucherPDF(t, "nuevo.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-NEW"})

	report, err := f.svc.Run(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.FilesScanned)

	zero := 0
	report, err = f.svc.Run(context.Background(), autocarga.RunOptions{DaysBack: &zero, Candidates: noCandidates()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.FilesScanned, "cero días desactiva el filtro")
}

func TestRun_ConfiguracionInvalidaAborta(t *testing.T) {
	f := newFixture(t)
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1"})
	negative := -1
	notDir := f.file(t, "archivo.pdf")

	cases := map[string]autocarga.RunOptions{
		"carpeta inexistente": {Folder: filepath.Join(f.folder, "no-existe")},
		"no es carpeta":       {Folder: notDir},
		"días negativos":      {DaysBack: &negative},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			report, err := f.svc.Run(context.Background(), opts, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Equal(t, autocarga.StateAborted, report.State)
		})
	}
	assert.Zero(t, f.extractor.calls, "no se toca ningún archivo")
	assert.Equal(t, autocarga.StateAborted, f.svc.LastReport().State)
}

// ── Corrida en segundo plano ─────────────────────────────────────────────────

func TestStart_UnaSolaCorridaActiva(t *testing.T) {
	f := newFixture(t)
	f.extractor.block = make(chan struct{})
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1"})

	require.NoError(t, f.svc.Start(context.Background(), autocarga.RunOptions{Candidates: noCandidates()}, nil))
	assert.True(t, f.svc.Progress().Running)
	assert.Nil(t, f.svc.LastReport(), "el reporte se publica al terminar")

	assert.ErrorIs(t, f.svc.Start(context.Background(), autocarga.RunOptions{}, nil), domain.ErrRunInProgress)
	_, err := f.svc.Run(context.Background(), autocarga.RunOptions{}, nil)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	_, err = f.svc.RepairAmountWords(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(f.extractor.block)
	require.Eventually(t, func() bool { return !f.svc.Progress().Running }, 2*time.Second, 10*time.Millisecond)

	report := f.svc.LastReport()
	require.NotNil(t, report)
	assert.Equal(t, autocarga.StateCompleted, report.State)
	assert.Equal(t, 1, report.Stats.Of(autocarga.KindVoucher).Created)
	p := f.svc.Progress()
	assert.Equal(t, 1, p.Processed)
	assert.Equal(t, 1, p.Total)
}

func TestStart_ConfiguracionInvalidaNoLanzaWorker(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Start(context.Background(), autocarga.RunOptions{Folder: "/no/existe/autocarga"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.False(t, f.svc.Progress().Running)
}

// ── Mantenimiento ────────────────────────────────────────────────────────────

func TestRelink_LigaValesYOrdenesPendientes(t *testing.T) {
	f := newFixture(t)
	f.seedProvider(t, &entity.Provider{ID: "p1", Name: "OLEK SA DE CV", ExternalCode: "C-1"})
	f.voucherPDF(t, "vale.pdf", map[entity.FieldLabel]string{entity.FieldVoucherNumber: "V-1", entity.FieldSourceDocument: "OLEK-5718"})
	f.orderPDF(t, "oc.pdf", map[entity.FieldLabel]string{
		entity.FieldReferenceNumber: "OC-1", entity.FieldProviderAccountCode: "C-1", entity.FieldAmount: "1160",
	})
	_, err := f.svc.Run(context.Background(), autocarga.RunOptions{}, nil)
	require.NoError(t, err)

	f.seedInvoice(t, olek5718())
	stats, err := f.svc.Relink(context.Background(), repository.InvoiceScope{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Of(autocarga.KindVoucher).Linked)
	assert.Equal(t, 1, stats.Of(autocarga.KindPurchaseOrder).Linked)
	assert.Equal(t, "inv-1", *f.voucher(t, "V-1").InvoiceID)
	assert.Equal(t, "inv-1", *f.order(t, "OC-1").InvoiceID)

	stats, err = f.svc.Relink(context.Background(), repository.InvoiceScope{})
	require.NoError(t, err)
	assert.Zero(t, stats.Of(autocarga.KindVoucher).Linked, "nada pendiente")
}

func TestRepairAmountWords(t *testing.T) {
	f := newFixture(t)
	f.seed(t, func(ctx context.Context, r autocarga.Repositories) error {
		if err := r.Vouchers.Create(ctx, &entity.Voucher{ID: "v1", VoucherNumber: "V-1", AmountText: "SEISMILPESOS00/100MN"}); err != nil {
			return err
		}
		if err := r.Vouchers.Create(ctx, &entity.Voucher{ID: "v2", VoucherNumber: "V-2", AmountText: "CIEN PESOS 00/100 MN"}); err != nil {
			return err
		}
		return r.PurchaseOrders.Create(ctx, &entity.PurchaseOrder{ID: "o1", ReferenceNumber: "OC-1", AmountInWords: "DOSMILQUINIENTOSPESOS"})
	})

	n, err := f.svc.RepairAmountWords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "SEIS MIL PESOS 00/100 MN", f.voucher(t, "V-1").AmountText)
	assert.Equal(t, "CIEN PESOS 00/100 MN", f.voucher(t, "V-2").AmountText)
	assert.Equal(t, "DOS MIL QUINIENTOS PESOS", f.order(t, "OC-1").AmountInWords)

	n, err = f.svc.RepairAmountWords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "segunda pasada no cambia nada")
}
