package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const transactionCSV = "Order ID,Date,Status,Qty,Amount,ship-postal-code\n" +
	"171-1,04-30-22,Shipped,1,647.62,560085\n" +
	"171-2,not-a-date,Shipped,1,,400081\n" +
	"171-3,04-29-22,Cancelled,0,406,\n"

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func mustLoad(t *testing.T, dir string) *Collection {
	t.Helper()
	c, err := Load(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func mustTable(t *testing.T, c *Collection, name string) *Table {
	t.Helper()
	tb, ok := c.Get(name)
	if !ok {
		t.Fatalf("dataset %q not loaded; have %v", name, c.Names())
	}
	return tb
}

func mustColumn(t *testing.T, tb *Table, name string) *Column {
	t.Helper()
	col, ok := tb.Column(name)
	if !ok {
		t.Fatalf("column %q missing; have %v", name, tb.ColumnNames())
	}
	return col
}

func TestLoadMissingDirIsEmpty(t *testing.T) {
	c := mustLoad(t, filepath.Join(t.TempDir(), "does-not-exist"))
	if c.Len() != 0 {
		t.Fatalf("expected empty collection, got %v", c.Names())
	}
	if got := Summary(c); got != "No data loaded." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestLoadSkipsUnreadableAndNonTabular(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", []byte("Order ID,Amount\n1,2\n"))
	writeFile(t, dir, "image.png", []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, dir, "empty.csv", nil)
	writeFile(t, dir, "broken.xlsx", []byte("not a zip archive"))
	writeFile(t, dir, "broken.csv.gz", []byte("not gzip either"))
	if err := os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := mustLoad(t, dir)
	if c.Len() != 0 {
		t.Fatalf("expected empty collection, got %v", c.Names())
	}
}

func TestTransactionShape(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Amazon Sale Report.csv", []byte(transactionCSV))
	tb := mustTable(t, mustLoad(t, dir), "amazon_sale_report")
	if tb.Shape != ShapeTransaction {
		t.Fatalf("shape = %q", tb.Shape)
	}
	date := mustColumn(t, tb, "Date")
	if date.Kind != KindTime {
		t.Fatalf("Date kind = %v", date.Kind)
	}
	if !date.IsNull(1) {
		t.Fatalf("malformed date should be null")
	}
	want0 := time.Date(2022, 4, 30, 0, 0, 0, 0, time.UTC)
	if date.IsNull(0) || !date.Time[0].Equal(want0) {
		t.Fatalf("row 0 date = %v", date.Time[0])
	}
	if date.IsNull(2) || date.Text(2) != "2022-04-29" {
		t.Fatalf("row 2 date = %q", date.Text(2))
	}
	amount := mustColumn(t, tb, "Amount")
	if !amount.Kind.Numeric() {
		t.Fatalf("Amount kind = %v", amount.Kind)
	}
	if amount.IsNull(1) || amount.Num[1] != 0 {
		t.Fatalf("null amount should default to zero, got null=%v v=%v", amount.IsNull(1), amount.Num[1])
	}
	if amount.Num[0] != 647.62 {
		t.Fatalf("amount[0] = %v", amount.Num[0])
	}
	postal := mustColumn(t, tb, "ship-postal-code")
	if !postal.Kind.Numeric() || !postal.IsNull(2) {
		t.Fatalf("postal code: kind=%v null2=%v", postal.Kind, postal.IsNull(2))
	}
}

func TestCatalogShapeCoercesMarkerColumns(t *testing.T) {
	dir := t.TempDir()
	csv := "Style Id,Catalog,Weight,TP,MRP Old,Final MRP Old\n" +
		"AN201,Moments,0.3,538,2178,2295\n" +
		"AN202,Moments,Nill,435,#REF,\"2,295\"\n"
	writeFile(t, dir, "P L March 2021.csv", []byte(csv))
	tb := mustTable(t, mustLoad(t, dir), "p_l_march_2021")
	if tb.Shape != ShapeCatalog {
		t.Fatalf("shape = %q", tb.Shape)
	}
	for _, name := range []string{"Weight", "TP", "MRP Old", "Final MRP Old"} {
		if col := mustColumn(t, tb, name); !col.Kind.Numeric() {
			t.Errorf("%s kind = %v, want numeric", name, col.Kind)
		}
	}
	if w := mustColumn(t, tb, "Weight"); !w.IsNull(1) || w.Num[0] != 0.3 {
		t.Errorf("Weight: null1=%v v0=%v", w.IsNull(1), w.Num[0])
	}
	if m := mustColumn(t, tb, "MRP Old"); !m.IsNull(1) {
		t.Errorf("stray token should be null")
	}
	if f := mustColumn(t, tb, "Final MRP Old"); f.Num[1] != 2295 {
		t.Errorf("thousands separator not handled: %v", f.Num[1])
	}
	if c := mustColumn(t, tb, "Catalog"); c.Kind != KindString {
		t.Errorf("Catalog kind = %v", c.Kind)
	}
}

func TestExpenseShapePromotesHeader(t *testing.T) {
	dir := t.TempDir()
	csv := "index,Recived Amount,Unnamed: 2,Expance,Unnamed: 4\n" +
		"0,Particular,Amount,Particular,Amount\n" +
		"1,06-19-22,1000,Large Bag,380\n" +
		"2,06-20-22,1500,Stationary,\"1,170\"\n"
	writeFile(t, dir, "Expense IIGF.csv", []byte(csv))
	tb := mustTable(t, mustLoad(t, dir), "expense_iigf")
	if tb.Shape != ShapeExpense {
		t.Fatalf("shape = %q", tb.Shape)
	}
	want := []string{"0", "Particular", "Amount", "Particular.1", "Amount.1"}
	if got := tb.ColumnNames(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("header = %v, want %v", got, want)
	}
	if tb.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", tb.Rows())
	}
	for _, i := range []int{2, 4} {
		if col := tb.Columns[i]; !col.Kind.Numeric() {
			t.Fatalf("column %d (%s) kind = %v", i, col.Name, col.Kind)
		}
	}
	if v := tb.Columns[4].Num[1]; v != 1170 {
		t.Fatalf("second Amount value = %v", v)
	}
}

func TestExpenseShapeWithoutMarkerRowKeepsHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "expense.csv", []byte("Expance,Amount\nBag,10\n"))
	tb := mustTable(t, mustLoad(t, dir), "expense")
	if tb.Rows() != 1 || tb.ColumnNames()[0] != "Expance" {
		t.Fatalf("header should be untouched: %v rows=%d", tb.ColumnNames(), tb.Rows())
	}
}

func TestWarehouseShapeDedupsPromotedHeader(t *testing.T) {
	dir := t.TempDir()
	csv := "Shiprocket,Unnamed: 1,INCREFF\n" +
		"Heads,Price (Per Unit),Price (Per Unit)\n" +
		"Inbound (Fresh Stock and RTO),4,4.5\n"
	writeFile(t, dir, "Warehouse Comparision.csv", []byte(csv))
	tb := mustTable(t, mustLoad(t, dir), "warehouse_comparision")
	if tb.Shape != ShapeWarehouse {
		t.Fatalf("shape = %q", tb.Shape)
	}
	want := "Heads|Price (Per Unit)|Price (Per Unit).1"
	if got := strings.Join(tb.ColumnNames(), "|"); got != want {
		t.Fatalf("header = %s, want %s", got, want)
	}
	if tb.Rows() != 1 {
		t.Fatalf("rows = %d", tb.Rows())
	}
}

func TestFirstMatchingRuleWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mixed.csv", []byte("Order ID,Stock,Amount\nA,oops,5\n"))
	tb := mustTable(t, mustLoad(t, dir), "mixed")
	if tb.Shape != ShapeTransaction {
		t.Fatalf("shape = %q", tb.Shape)
	}
	if s := mustColumn(t, tb, "Stock"); s.Kind != KindString {
		t.Fatalf("Stock should not be coerced under the transaction rule, kind=%v", s.Kind)
	}
}

func TestStockAndAltTransactionShapes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Sale Report.csv", []byte("SKU Code, Stock ,Color\nA1,6,Red\nA2,n.a.,Blue\n"))
	writeFile(t, dir, "International sale Report.csv", []byte("DATE,CUSTOMER,PCS,RATE,GROSS AMT\n06-05-21,REVATHY,1,616.56,617\nJun-21,X,1,x,\n"))
	c := mustLoad(t, dir)

	stock := mustTable(t, c, "sale_report")
	if stock.Shape != ShapeStock {
		t.Fatalf("stock shape = %q (columns %v)", stock.Shape, stock.ColumnNames())
	}
	if col := mustColumn(t, stock, "Stock"); !col.Kind.Numeric() || !col.IsNull(1) {
		t.Fatalf("Stock coercion failed: %v", col.Kind)
	}

	intl := mustTable(t, c, "international_sale_report")
	if intl.Shape != ShapeTransactionAlt {
		t.Fatalf("intl shape = %q", intl.Shape)
	}
	if d := mustColumn(t, intl, "DATE"); d.Kind != KindTime || d.IsNull(0) || !d.IsNull(1) {
		t.Fatalf("DATE parse: kind=%v null0=%v null1=%v", d.Kind, d.IsNull(0), d.IsNull(1))
	}
	if r := mustColumn(t, intl, "RATE"); !r.Kind.Numeric() || !r.IsNull(1) {
		t.Fatalf("RATE coercion failed")
	}
}

func TestReloadYieldsSameShape(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Amazon Sale Report.csv", []byte(transactionCSV))
	writeFile(t, dir, "Sale Report.csv", []byte("SKU Code,Stock\nA1,6\n"))
	a, b := mustLoad(t, dir), mustLoad(t, dir)
	if strings.Join(a.Names(), ",") != strings.Join(b.Names(), ",") {
		t.Fatalf("names differ: %v vs %v", a.Names(), b.Names())
	}
	for _, n := range a.Names() {
		ta, tb := mustTable(t, a, n), mustTable(t, b, n)
		if ta.Rows() != tb.Rows() || len(ta.Columns) != len(tb.Columns) {
			t.Fatalf("%s shape differs", n)
		}
	}
	if Summary(a) != Summary(b) {
		t.Fatalf("summaries differ")
	}
}

func TestEncodingFallbackAndBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "latin.csv", []byte("Name,City\nJos\xe9,M\xfcnchen\n"))
	writeFile(t, dir, "bom.csv", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Order ID,Amount\n1,10\n")...))
	c := mustLoad(t, dir)
	if got := mustTable(t, c, "latin").Columns[0].Raw[0]; got != "José" {
		t.Fatalf("latin-1 fallback: %q", got)
	}
	bom := mustTable(t, c, "bom")
	if bom.ColumnNames()[0] != "Order ID" || bom.Shape != ShapeTransaction {
		t.Fatalf("BOM not stripped: %q", bom.ColumnNames()[0])
	}
}

func TestCompressedFiles(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(transactionCSV))
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "orders-2022.csv.gz", gz.Bytes())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = zw.Write([]byte("SKU Code\tStock\nA1\t6\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "stock.tsv.zst", zs.Bytes())

	c := mustLoad(t, dir)
	if tb := mustTable(t, c, "orders_2022"); tb.Rows() != 3 || tb.Shape != ShapeTransaction {
		t.Fatalf("gzip dataset: rows=%d shape=%s", tb.Rows(), tb.Shape)
	}
	if tb := mustTable(t, c, "stock"); tb.Shape != ShapeStock || len(tb.Columns) != 2 {
		t.Fatalf("zstd dataset: shape=%s cols=%v", tb.Shape, tb.ColumnNames())
	}
}

func TestXLSXFirstSheet(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"xl/workbook.xml": `<workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
			`<sheets><sheet name="Orders" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<Relationships><Relationship Id="rId1" Target="worksheets/sheet1.xml"/></Relationships>`,
		"xl/sharedStrings.xml":       `<sst><si><t>Order ID</t></si><si><t>Amount</t></si><si><t>A-1</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData>` +
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>` +
			`<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>1200</v></c></row>` +
			`<row r="3"><c r="A3" t="inlineStr"><is><t>A-2</t></is></c></row>` +
			`</sheetData></worksheet>`,
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeFile(t, dir, "Orders.xlsx", buf.Bytes())

	tb := mustTable(t, mustLoad(t, dir), "orders")
	if tb.Rows() != 2 || strings.Join(tb.ColumnNames(), ",") != "Order ID,Amount" {
		t.Fatalf("xlsx table: rows=%d cols=%v", tb.Rows(), tb.ColumnNames())
	}
	amount := mustColumn(t, tb, "Amount")
	if amount.Num[0] != 1200 || amount.Num[1] != 0 || amount.IsNull(1) {
		t.Fatalf("amount = %v null=%v", amount.Num, amount.Null)
	}
	if id := mustColumn(t, tb, "Order ID"); id.Text(1) != "A-2" {
		t.Fatalf("inline string = %q", id.Text(1))
	}
}

func TestNameCollisionLastLoadedWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Sale Report.csv", []byte("A\n1\n"))
	writeFile(t, dir, "sale-report.csv", []byte("A\n1\n2\n"))
	tb := mustTable(t, mustLoad(t, dir), "sale_report")
	if tb.Rows() != 2 || filepath.Base(tb.Source) != "sale-report.csv" {
		t.Fatalf("expected lexically last file to win, got %s", tb.Source)
	}
}

func TestLoadHonorsContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", []byte("A\n1\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, dir, Options{}); err == nil {
		t.Fatalf("expected context error")
	}
}
