package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindStatement Kind = "statement"
)

const (
	UnknownCustomer = "Unknown Customer"
	UnknownLocation = "N/A"
	NoAddressOnFile = "No Address on File"
	RatePlaceholder = "—"
	dateLayout      = "2006-01-02"
	periodLayout    = "2006-01"
	invoiceTitle    = "Water Service Invoice"
	statementTitle  = "Official Billing Statement"
	invoiceNoName   = "Bill"
	defaultIssuer   = "HYDROSPARK WATER CO."
	defaultPrefix   = "HydroSpark"
)

// Party is the BILL TO block. Missing fields already carry placeholder text.
type Party struct {
	Name       string `json:"name"`
	LocationID string `json:"location_id"`
	Address    string `json:"address"`
}

// Field is a label/value pair, used for invoice line items and statement totals.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Row is one bill in a statement table.
type Row struct {
	Period  string `json:"period"`
	Usage   string `json:"usage"`
	Rate    string `json:"rate"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date"`
	Status  string `json:"status"`
}

// Document is the printable composition of an invoice or statement. Money and
// usage are already formatted; TotalAmount keeps the exact sum.
type Document struct {
	Kind        Kind            `json:"kind"`
	Issuer      string          `json:"issuer"`
	Title       string          `json:"title"`
	DateLabel   string          `json:"date_label"`
	Date        string          `json:"date"`
	BillTo      Party           `json:"bill_to"`
	LineItems   []Field         `json:"line_items,omitempty"`
	Totals      []Field         `json:"totals,omitempty"`
	Columns     []string        `json:"columns,omitempty"`
	Rows        []Row           `json:"rows,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Filename    string          `json:"filename"`
}

var statementColumns = []string{"Billing Period", "Usage (CCF)", "Rate ($/CCF)", "Cost", "Due Date", "Status"}

// Composer builds invoice and statement documents. It never fails: a missing
// customer yields placeholder text in the BILL TO block.
type Composer struct {
	Issuer         string
	FilenamePrefix string
	Now            func() time.Time
}

func NewComposer(issuer, filenamePrefix string) *Composer {
	if issuer == "" {
		issuer = defaultIssuer
	}
	if filenamePrefix == "" {
		filenamePrefix = defaultPrefix
	}
	return &Composer{Issuer: issuer, FilenamePrefix: filenamePrefix, Now: time.Now}
}

func (c *Composer) today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().Format(dateLayout)
}

// Invoice composes a single bill.
func (c *Composer) Invoice(b storage.Bill, customer *storage.Customer) Document {
	return Document{
		Kind:      KindInvoice,
		Issuer:    c.Issuer,
		Title:     invoiceTitle,
		DateLabel: "Printed",
		Date:      c.today(),
		BillTo:    billTo(customer),
		LineItems: []Field{
			{Label: "Billing Period", Value: period(b)},
			{Label: "Water Usage", Value: b.TotalUsageCCF.StringFixed(2) + " CCF"},
			{Label: "Rate", Value: invoiceRate(b)},
			{Label: "Due Date", Value: formatDate(b.DueDate)},
			{Label: "Status", Value: strings.ToUpper(string(b.Status))},
			{Label: "Total Charges", Value: money(b.TotalAmount)},
		},
		TotalAmount: b.TotalAmount,
		Filename:    c.InvoiceFilename(b, customer),
	}
}

// Statement composes the full bill history. Rows follow the given order.
func (c *Composer) Statement(bills []storage.Bill, customer *storage.Customer) Document {
	totalAmount, totalUsage := decimal.Zero, decimal.Zero
	rows := make([]Row, 0, len(bills))
	for _, b := range bills {
		totalAmount = totalAmount.Add(b.TotalAmount)
		totalUsage = totalUsage.Add(b.TotalUsageCCF)
		rate := RatePlaceholder
		if r, ok := DerivedRate(b); ok {
			rate = "$" + r.StringFixed(2)
		}
		rows = append(rows, Row{
			Period:  period(b),
			Usage:   b.TotalUsageCCF.StringFixed(2),
			Rate:    rate,
			Amount:  money(b.TotalAmount),
			DueDate: formatDate(b.DueDate),
			Status:  strings.ToUpper(string(b.Status)),
		})
	}

	return Document{
		Kind:      KindStatement,
		Issuer:    c.Issuer,
		Title:     statementTitle,
		DateLabel: "Invoice Date",
		Date:      c.today(),
		BillTo:    billTo(customer),
		Totals: []Field{
			{Label: "Total Bills", Value: decimal.NewFromInt(int64(len(bills))).String()},
			{Label: "Total Usage", Value: totalUsage.StringFixed(2) + " CCF"},
			{Label: "Total Amount", Value: money(totalAmount)},
		},
		Columns:     statementColumns,
		Rows:        rows,
		TotalAmount: totalAmount,
		Filename:    c.StatementFilename(customer),
	}
}

// DerivedRate is amount / usage. It is informational only and reports false
// when usage is zero.
func DerivedRate(b storage.Bill) (decimal.Decimal, bool) {
	if b.TotalUsageCCF.IsZero() {
		return decimal.Zero, false
	}
	return b.TotalAmount.Div(b.TotalUsageCCF), true
}

func invoiceRate(b storage.Bill) string {
	r, ok := DerivedRate(b)
	if !ok {
		return RatePlaceholder
	}
	return "$" + r.StringFixed(2) + " / CCF"
}

func billTo(c *storage.Customer) Party {
	p := Party{Name: UnknownCustomer, LocationID: UnknownLocation, Address: NoAddressOnFile}
	if c == nil {
		return p
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		p.Name = name
	}
	if loc := strings.TrimSpace(c.LocationID); loc != "" {
		p.LocationID = loc
	}
	if addr := strings.TrimSpace(c.MailingAddress); addr != "" {
		p.Address = addr
	}
	return p
}

func period(b storage.Bill) string {
	return formatDate(b.PeriodStart) + " to " + formatDate(b.PeriodEnd)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return RatePlaceholder
	}
	return t.Format(dateLayout)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[/\\"]`)
)

// FilenameSegment collapses whitespace runs in a display name into "_".
func FilenameSegment(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "")
	return whitespaceRun.ReplaceAllString(name, "_")
}

func customerSegment(c *storage.Customer) string {
	if c == nil {
		return ""
	}
	return FilenameSegment(c.Name)
}

// InvoiceFilename is <prefix>_Invoice_<Name>_<YYYY-MM>.pdf, using "Bill" for a missing customer.
func (c *Composer) InvoiceFilename(b storage.Bill, customer *storage.Customer) string {
	name := customerSegment(customer)
	if name == "" {
		name = invoiceNoName
	}
	return c.FilenamePrefix + "_Invoice_" + name + "_" + b.PeriodStart.Format(periodLayout) + ".pdf"
}

// StatementFilename is <prefix>_Statement_<Name>.pdf, or <prefix>_Statement.pdf without a customer.
func (c *Composer) StatementFilename(customer *storage.Customer) string {
	name := customerSegment(customer)
	if name == "" {
		return c.FilenamePrefix + "_Statement.pdf"
	}
	return c.FilenamePrefix + "_Statement_" + name + ".pdf"
}
