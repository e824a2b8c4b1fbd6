// Package encoding provides the categorical, multi-label and label encoders
// fitted at training time and replayed at inference. Every encoder is a
// plain value that round-trips through JSON; once fitted it is never mutated.
package encoding

import (
	"fmt"
	"sort"
	"strings"
)

// OneHotEncoder encodes N categorical columns. Each column contributes one
// feature per category seen during fitting; a value never seen maps to an
// all-zero block.
type OneHotEncoder struct {
	Columns    []string   `json:"columns"`
	Categories [][]string `json:"categories"`
}

// FitOneHot learns the sorted category set of every column. Each row must
// have one value per column.
func FitOneHot(columns []string, rows [][]string) (*OneHotEncoder, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrColumnMismatch)
	}
	sets := make([]map[string]struct{}, len(columns))
	for i := range sets {
		sets[i] = make(map[string]struct{})
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrColumnMismatch, r, len(row), len(columns))
		}
		for i, v := range row {
			sets[i][v] = struct{}{}
		}
	}

	e := &OneHotEncoder{
		Columns:    append([]string(nil), columns...),
		Categories: make([][]string, len(columns)),
	}
	for i, set := range sets {
		e.Categories[i] = sortedKeys(set)
	}
	return e, nil
}

// FeatureNames returns "<column>_<category>" for every output feature.
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for i, col := range e.Columns {
		for _, cat := range e.Categories[i] {
			names = append(names, col+"_"+cat)
		}
	}
	return names
}

// Transform encodes one row. Unseen values leave their block at zero.
func (e *OneHotEncoder) Transform(values []string) ([]float64, error) {
	if len(values) != len(e.Columns) || len(e.Categories) != len(e.Columns) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrColumnMismatch, len(values), len(e.Columns))
	}
	out := make([]float64, 0, e.width())
	for i, cats := range e.Categories {
		block := make([]float64, len(cats))
		if j, ok := search(cats, values[i]); ok {
			block[j] = 1
		}
		out = append(out, block...)
	}
	return out, nil
}

func (e *OneHotEncoder) width() int {
	n := 0
	for _, c := range e.Categories {
		n += len(c)
	}
	return n
}

// MultiLabelBinarizer maps a set of labels to a multi-hot vector over the
// vocabulary seen during fitting. Labels are compared lower-cased and
// trimmed; unseen labels are dropped.
type MultiLabelBinarizer struct {
	Prefix  string   `json:"prefix"`
	Classes []string `json:"classes"`
}

// FitMultiLabel learns the vocabulary of label sets. Feature names are
// prefix + label.
func FitMultiLabel(prefix string, sets [][]string) *MultiLabelBinarizer {
	vocab := make(map[string]struct{})
	for _, set := range sets {
		for _, l := range set {
			if l = cleanLabel(l); l != "" {
				vocab[l] = struct{}{}
			}
		}
	}
	return &MultiLabelBinarizer{Prefix: prefix, Classes: sortedKeys(vocab)}
}

// FeatureNames returns the prefixed vocabulary in column order.
func (m *MultiLabelBinarizer) FeatureNames() []string {
	names := make([]string, len(m.Classes))
	for i, c := range m.Classes {
		names[i] = m.Prefix + c
	}
	return names
}

// Transform encodes one label set.
func (m *MultiLabelBinarizer) Transform(labels []string) []float64 {
	out := make([]float64, len(m.Classes))
	for _, l := range labels {
		if j, ok := search(m.Classes, cleanLabel(l)); ok {
			out[j] = 1
		}
	}
	return out
}

// LabelEncoder maps class names to dense indices in sorted order.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabels learns the sorted set of distinct labels.
func FitLabels(labels []string) *LabelEncoder {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return &LabelEncoder{Classes: sortedKeys(set)}
}

// Encode returns the index of label.
func (l *LabelEncoder) Encode(label string) (int, error) {
	i, ok := search(l.Classes, label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return i, nil
}

// Decode returns the class name at index i.
func (l *LabelEncoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(l.Classes) {
		return "", fmt.Errorf("%w: %d of %d", ErrLabelIndex, i, len(l.Classes))
	}
	return l.Classes[i], nil
}

// Len returns the number of classes.
func (l *LabelEncoder) Len() int { return len(l.Classes) }

func cleanLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func search(sorted []string, v string) (int, bool) {
	i := sort.SearchStrings(sorted, v)
	return i, i < len(sorted) && sorted[i] == v
}
