// Package loanbook loads, validates and saves loan books: the loans of a
// portfolio, their collateral pools and optional calculation parameters,
// stored as JSON or YAML.
package loanbook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Ouadii-Zine/financify/internal/analysis/loan"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// Format is a loan book encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported loan book format")
	// ErrLoanNotFound is returned when a loan id is not in the book.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrPortfolioNotFound is returned when a collateral pool id is not in the book.
	ErrPortfolioNotFound = errors.New("collateral portfolio not found")
)

// Book is a loan portfolio with its collateral pools.
type Book struct {
	Name                 string                        `json:"name,omitempty"`
	Loans                []models.Loan                 `json:"loans"                          validate:"dive"`
	CollateralPortfolios []models.CollateralPortfolio  `json:"collateralPortfolios,omitempty" validate:"dive"`
	Parameters           *models.CalculationParameters `json:"parameters,omitempty"`
}

// FormatFor returns the format implied by a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads, parses and validates a book file.
func Load(path string) (*Book, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read loan book: %w", err)
	}
	b, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes and validates a book. A document that is a bare list is
// read as the loans of an unnamed book.
func Parse(data []byte, format Format) (*Book, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	var b Book
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &b.Loans); err != nil {
			return nil, fmt.Errorf("decode loans: %w", err)
		}
	} else {
		// Parameters decode over the built-in defaults so that a section
		// listing a few fields keeps the rest, and an explicit zero stays zero.
		defaults := models.DefaultCalculationParameters()
		b.Parameters = &defaults
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode loan book: %w", err)
		}
		if !hasParameters(data) {
			b.Parameters = nil
		}
	}

	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

func hasParameters(data []byte) bool {
	var probe struct {
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	raw := bytes.TrimSpace(probe.Parameters)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// yamlToJSON re-encodes YAML as JSON so that the json tags of the models
// apply to both formats. Scalars under string-typed fields keep their source
// text: an unquoted 2024-01-01 stays a date string and id: 1001 stays "1001".
func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	doc, err := nodeValue(&root, "")
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

// stringKeys holds the json names that are strings (or lists of strings)
// wherever they appear in a book.
var stringKeys = stringFields(reflect.TypeOf(Book{}))

func stringFields(t reflect.Type) map[string]bool {
	seen := make(map[reflect.Type]bool)
	kinds := make(map[string]map[bool]bool)
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		t = elemType(t)
		if t.Kind() != reflect.Struct || seen[t] {
			return
		}
		seen[t] = true
		for i := range t.NumField() {
			f := t.Field(i)
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || !f.IsExported() {
				continue
			}
			if name == "" {
				name = f.Name
			}
			if kinds[name] == nil {
				kinds[name] = make(map[bool]bool)
			}
			kinds[name][elemType(f.Type).Kind() == reflect.String] = true
			walk(f.Type)
		}
	}
	walk(t)

	out := make(map[string]bool)
	for name, k := range kinds {
		if k[true] && !k[false] {
			out[name] = true
		}
	}
	return out
}

func elemType(t reflect.Type) reflect.Type {
	for {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
		default:
			return t
		}
	}
}

// nodeValue converts a YAML node into plain Go values for json.Marshal. key
// is the mapping key the node sits under.
func nodeValue(n *yaml.Node, key string) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0], key)
	case yaml.AliasNode:
		return nodeValue(n.Alias, key)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			v, err := nodeValue(n.Content[i+1], k)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c, key)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		tag := n.ShortTag()
		switch {
		case tag == "!!null":
			return nil, nil
		case stringKeys[key], tag == "!!timestamp":
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

// Save writes the book in the format implied by path.
func Save(path string, b *Book) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(b, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write loan book: %w", err)
	}
	return nil
}

// Encode serializes a book.
func Encode(b *Book, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode loan book: %w", err)
	}
	switch format {
	case FormatJSON:
		return append(data, '\n'), nil
	case FormatYAML:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and id uniqueness. All violations are
// reported in one error.
func Validate(b *Book) error {
	var problems []string
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate loan book: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	seen := make(map[string]bool, len(b.Loans))
	for _, l := range b.Loans {
		if l.ID != "" && seen[l.ID] {
			problems = append(problems, fmt.Sprintf("loans: duplicate id %q", l.ID))
		}
		seen[l.ID] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid loan book: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Book.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	}
}

// Normalize fills constant-LGD loans that carry no LGD from the sector
// assumptions in params. Sector names match case-insensitively. It returns
// the number of loans changed.
func (b *Book) Normalize(params models.CalculationParameters) int {
	var n int
	for i := range b.Loans {
		l := &b.Loans[i]
		if l.LGD > 0 || l.Sector == "" {
			continue
		}
		if l.LGDType != "" && l.LGDType != models.LGDConstant {
			continue
		}
		if v, ok := SectorLGD(params.LGDAssumptions, l.Sector); ok {
			l.LGD = v
			n++
		}
	}
	return n
}

// SectorLGD looks up a sector assumption, exact match first.
func SectorLGD(assumptions map[string]float64, sector string) (float64, bool) {
	if v, ok := assumptions[sector]; ok {
		return v, true
	}
	for name, v := range assumptions {
		if strings.EqualFold(name, sector) {
			return v, true
		}
	}
	return 0, false
}

// Loan returns the loan with the given id.
func (b *Book) Loan(id string) (*models.Loan, error) {
	for i := range b.Loans {
		if b.Loans[i].ID == id {
			return &b.Loans[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrLoanNotFound, id)
}

// Portfolio returns the collateral pool with the given id.
func (b *Book) Portfolio(id string) (*models.CollateralPortfolio, error) {
	for i := range b.CollateralPortfolios {
		if b.CollateralPortfolios[i].ID == id {
			return &b.CollateralPortfolios[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortfolioNotFound, id)
}

// Pools indexes the collateral pools for the loan calculator.
func (b *Book) Pools() loan.Pools {
	return loan.NewPools(b.CollateralPortfolios)
}

// ParametersOr returns the parameters embedded in the book, or def when the
// book has none.
func (b *Book) ParametersOr(def models.CalculationParameters) models.CalculationParameters {
	if b.Parameters != nil {
		return *b.Parameters
	}
	return def
}
