package parser

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"chat-to-rich/pkg/ledger"

	"github.com/shopspring/decimal"
)

// amountPattern matches an optional dollar sign, digits and an optional two-digit fraction.
var amountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)

// ExamplePrompts are suggestions shown to new users.
var ExamplePrompts = []string{
	"Bought coffee for $5",
	"Spent $50 on groceries",
	"Paid rent $1200",
	"Earned $100 from freelance",
	"Gas station $40",
	"Movie ticket $15",
}

// Draft is a candidate transaction awaiting confirmation.
type Draft struct {
	Title    string                 `json:"title"`
	Amount   decimal.Decimal        `json:"amount"`
	Category ledger.Category        `json:"category"`
	Type     ledger.TransactionType `json:"type"`
}

// NewTransaction turns the draft into an unconfirmed ledger entry dated at.
func (d Draft) NewTransaction(at time.Time) ledger.NewTransaction {
	return ledger.NewTransaction{
		Title:    d.Title,
		Amount:   d.Amount,
		Category: d.Category,
		Type:     d.Type,
		Date:     at,
	}
}

// Result is the outcome of parsing one message. Draft is nil when no positive amount was found.
type Result struct {
	Acknowledgment string `json:"acknowledgment"`
	Draft          *Draft `json:"draft,omitempty"`
}

// Parser turns free text into a transaction draft using keyword rules.
// It is safe for concurrent use.
type Parser struct {
	rules  Rules
	income []string
	verbRe *regexp.Regexp

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Parser.
type Option func(*Parser)

// WithRand makes acknowledgment selection use r.
func WithRand(r *rand.Rand) Option {
	return func(p *Parser) {
		p.rng = r
	}
}

// New builds a parser from rules.
func New(rules Rules, opts ...Option) (*Parser, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	p := &Parser{rules: rules, income: lowerAll(rules.IncomeKeywords)}

	if len(rules.Verbs) > 0 {
		quoted := make([]string, len(rules.Verbs))
		for i, v := range rules.Verbs {
			quoted[i] = regexp.QuoteMeta(strings.TrimSpace(v))
		}
		p.verbRe = regexp.MustCompile(`(?i)^(` + strings.Join(quoted, "|") + `)\s*`)
	}

	p.rules.Categories = make([]CategoryRule, len(rules.Categories))
	for i, c := range rules.Categories {
		p.rules.Categories[i] = CategoryRule{Category: c.Category, Keywords: lowerAll(c.Keywords)}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewDefault builds a parser from DefaultRules.
func NewDefault(opts ...Option) *Parser {
	p, err := New(DefaultRules(), opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse never fails: every input gets an acknowledgment, and a draft when it holds a positive amount.
func (p *Parser) Parse(text string) Result {
	res := Result{Acknowledgment: p.acknowledgment()}

	loc := amountPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return res
	}
	amount, err := decimal.NewFromString(text[loc[2]:loc[3]])
	if err != nil || !amount.IsPositive() {
		return res
	}

	lower := strings.ToLower(text)

	typ := ledger.Expense
	category := p.category(lower)
	if containsAny(lower, p.income) {
		typ = ledger.Income
		category = ledger.CategoryIncome
	}

	res.Draft = &Draft{
		Title:    p.title(text, text[loc[0]:loc[1]], category),
		Amount:   amount,
		Category: category,
		Type:     typ,
	}
	return res
}

func (p *Parser) category(lower string) ledger.Category {
	for _, rule := range p.rules.Categories {
		if containsAny(lower, rule.Keywords) {
			return rule.Category
		}
	}
	return ledger.CategoryOther
}

// title removes the amount text and a leading verb, falling back to the category name.
func (p *Parser) title(text, matched string, category ledger.Category) string {
	title := strings.TrimSpace(strings.Replace(text, matched, "", 1))
	if p.verbRe != nil {
		title = p.verbRe.ReplaceAllString(title, "")
	}
	if title == "" {
		title = category.DisplayName()
	}
	return capitalize(title)
}

func (p *Parser) acknowledgment() string {
	acks := p.rules.Acknowledgments
	if p.rng == nil {
		return acks[rand.IntN(len(acks))]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return acks[p.rng.IntN(len(acks))]
}

// Acknowledgments returns the reply pool.
func (p *Parser) Acknowledgments() []string {
	out := make([]string, len(p.rules.Acknowledgments))
	copy(out, p.rules.Acknowledgments)
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
