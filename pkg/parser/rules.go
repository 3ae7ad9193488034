package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"chat-to-rich/pkg/ledger"

	"gopkg.in/yaml.v3"
)

// CategoryRule maps keywords to a category. Rules are checked in order; the first hit wins.
type CategoryRule struct {
	Category ledger.Category `yaml:"category"`
	Keywords []string        `yaml:"keywords"`
}

// Rules is the data the parser runs on. Matching is case-insensitive substring search.
type Rules struct {
	// IncomeKeywords mark a message as income, which forces the income category.
	IncomeKeywords []string `yaml:"income_keywords"`

	// Categories in priority order.
	Categories []CategoryRule `yaml:"categories"`

	// Verbs are stripped from the start of a title, e.g. "Bought coffee" -> "coffee".
	Verbs []string `yaml:"verbs"`

	// Acknowledgments are the canned replies; one is picked at random per message.
	Acknowledgments []string `yaml:"acknowledgments"`
}

// DefaultRules returns the built-in keyword tables.
func DefaultRules() Rules {
	return Rules{
		IncomeKeywords: []string{"earned", "received", "got paid", "salary", "bonus", "freelance", "income"},
		Categories: []CategoryRule{
			{ledger.CategoryFood, []string{"food", "coffee", "restaurant", "lunch", "dinner", "breakfast", "groceries", "ate", "bought food"}},
			{ledger.CategoryTransport, []string{"gas", "fuel", "uber", "taxi", "bus", "train", "transport", "car", "parking"}},
			{ledger.CategoryShopping, []string{"bought", "shopping", "clothes", "amazon", "store", "purchase"}},
			{ledger.CategoryEntertainment, []string{"movie", "cinema", "concert", "game", "entertainment", "netflix", "spotify"}},
			{ledger.CategoryBills, []string{"rent", "electricity", "water", "internet", "phone", "bill", "utility"}},
			{ledger.CategoryHealth, []string{"doctor", "medicine", "pharmacy", "gym", "health", "medical"}},
			{ledger.CategoryIncome, []string{"salary", "freelance", "bonus", "earned", "income", "paid"}},
		},
		Verbs: []string{"bought", "spent", "paid", "earned", "received", "got"},
		Acknowledgments: []string{
			"Got it! Let me create a transaction for that.",
			"Perfect! I'll help you track this expense.",
			"Nice! Adding that to your records.",
			"Understood! Creating your transaction card.",
			"Great! Let me process that for you.",
		},
	}
}

// Validate checks that every category is known, that no keyword is blank and that there
// is something to reply with.
func (r Rules) Validate() error {
	if len(r.Acknowledgments) == 0 {
		return errors.New("parser: at least one acknowledgment is required")
	}
	for _, k := range r.IncomeKeywords {
		if strings.TrimSpace(k) == "" {
			return errors.New("parser: empty income keyword")
		}
	}
	for i, c := range r.Categories {
		if !c.Category.Valid() {
			return fmt.Errorf("parser: rule %d: unknown category %q", i, c.Category)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("parser: rule %d (%s): no keywords", i, c.Category)
		}
		for _, k := range c.Keywords {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("parser: rule %d (%s): empty keyword", i, c.Category)
			}
		}
	}
	for _, v := range r.Verbs {
		if strings.TrimSpace(v) == "" {
			return errors.New("parser: empty verb")
		}
	}
	return nil
}

// ParseRules reads YAML rules. Sections left out keep their defaults.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parser: decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("parser: read rules: %w", err)
	}
	return ParseRules(data)
}
