package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/noah-isme/quotedesk/internal/pricing"
	"github.com/noah-isme/quotedesk/internal/quote"
)

//go:embed templates/*.html
var templateFS embed.FS

// Document is the data every email template renders.
type Document struct {
	Subject       string
	Number        string
	Customer      quote.Customer
	Notes         string
	Lines         []LineView
	Totals        pricing.Summary
	Currency      string
	Shipping      bool
	ShippingNotes string
	ExpiresAt     time.Time
	ApprovalURL   string
	Reason        string
	Flags         []string
}

// LineView is one formatted quote line.
type LineView struct {
	Name     string
	SKU      string
	Size     string
	Quantity int
	Unit     string
	Total    string
	Cert     bool
}

// Renderer renders quote emails from the embedded templates.
type Renderer struct {
	sets     map[Kind]*template.Template
	currency string
	location *time.Location
}

// NewRenderer parses one template set per email kind.
func NewRenderer(currency string, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"money": pricing.Format,
		"date":  func(t time.Time) string { return t.In(loc).Format("2 January 2006") },
	}
	kinds := []Kind{KindSubmittedSales, KindSubmittedCustomer, KindSent, KindApproved, KindRejected, KindExpired}
	r := &Renderer{sets: make(map[Kind]*template.Template, len(kinds)), currency: currency, location: loc}
	for _, kind := range kinds {
		t, err := template.New(string(kind)).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("notify: parse %s template: %w", kind, err)
		}
		r.sets[kind] = t
	}
	return r, nil
}

// Document builds the template data for q.
func (r *Renderer) Document(q quote.Quote) Document {
	doc := Document{
		Number:        q.Number,
		Customer:      q.Customer,
		Notes:         q.Notes,
		Totals:        q.Totals,
		Currency:      r.currency,
		Shipping:      q.ShippingCost != nil,
		ShippingNotes: q.ShippingNotes,
		ExpiresAt:     q.ExpiresAt,
		Flags:         describeFlags(q.Flags),
	}
	for _, item := range q.Items {
		doc.Lines = append(doc.Lines, lineView(item))
	}
	return doc
}

// Render returns the subject and HTML body for kind.
func (r *Renderer) Render(kind Kind, doc Document) (string, string, error) {
	set, ok := r.sets[kind]
	if !ok {
		return "", "", fmt.Errorf("notify: no template for %q", kind)
	}
	var subject bytes.Buffer
	if err := set.ExecuteTemplate(&subject, "subject", doc); err != nil {
		return "", "", fmt.Errorf("notify: render %s subject: %w", kind, err)
	}
	doc.Subject = strings.TrimSpace(subject.String())
	var body bytes.Buffer
	if err := set.ExecuteTemplate(&body, "layout", doc); err != nil {
		return "", "", fmt.Errorf("notify: render %s body: %w", kind, err)
	}
	return doc.Subject, body.String(), nil
}

func lineView(item quote.Item) LineView {
	v := LineView{
		Name:     item.Name,
		SKU:      item.SKU(),
		Size:     item.SizeLabel(),
		Quantity: item.Quantity,
		Unit:     "POA",
		Total:    "POA",
		Cert:     item.MaterialTestCert,
	}
	if item.IsCustom() {
		v.Size = "Custom"
	}
	if unit := item.UnitPrice(); unit != nil {
		v.Unit = pricing.Format(*unit)
		v.Total = pricing.Format(*unit * pricing.Money(item.Quantity))
	}
	return v
}

func describeFlags(f quote.Flags) []string {
	var out []string
	if f.NonMetro {
		out = append(out, fmt.Sprintf("Delivery zone is %s: confirm freight before sending", f.DeliveryZone))
	}
	if f.LargeOrder {
		out = append(out, fmt.Sprintf("Large order: %d units", f.TotalQuantity))
	}
	if f.LongLeadTime {
		out = append(out, "Long lead time: "+strings.Join(f.LongLeadTimeItems, ", "))
	}
	return out
}
