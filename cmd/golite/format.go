package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"goLite/internal/engine"
	"goLite/internal/types"
)

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// rows prints a result set: a header line then one line per row, columns
// separated by " | ".
func (p printer) rows(cols []string, rows []engine.Row) error {
	if p.json {
		out := struct {
			Columns []string             `json:"columns"`
			Rows    [][]types.OwnedValue `json:"rows"`
		}{Columns: cols, Rows: make([][]types.OwnedValue, len(rows))}
		for i, r := range rows {
			out.Rows[i] = r.Values
		}
		return p.encode(out)
	}
	if _, err := fmt.Fprintln(p.w, strings.Join(cols, " | ")); err != nil {
		return err
	}
	parts := make([]string, len(cols))
	for _, r := range rows {
		for i, v := range r.Values {
			parts[i] = v.String()
		}
		if _, err := fmt.Fprintln(p.w, strings.Join(parts, " | ")); err != nil {
			return err
		}
	}
	return nil
}

func (p printer) value(v types.OwnedValue) error {
	if p.json {
		return p.encode(v)
	}
	_, err := fmt.Fprintln(p.w, v.String())
	return err
}

// parseLiteral reads a command-line value: NULL, an integer, a real,
// 'quoted text', X'hex' or bare text.
func parseLiteral(s string) (types.OwnedValue, error) {
	switch {
	case strings.EqualFold(s, "NULL"):
		return types.Null(), nil
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return types.NewText(strings.ReplaceAll(s[1:len(s)-1], "''", "'")), nil
	case len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && s[1] == '\'' && s[len(s)-1] == '\'':
		b, err := hex.DecodeString(s[2 : len(s)-1])
		if err != nil {
			return types.Null(), fmt.Errorf("blob literal %s: %w", s, err)
		}
		return types.NewBlob(b), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.Integer(i), nil
	}
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return types.Float(f), nil
		}
	}
	return types.NewText(s), nil
}

// parseAssignment splits "column=literal".
func parseAssignment(s string) (string, types.OwnedValue, error) {
	name, lit, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", types.Null(), fmt.Errorf("expected column=value, got %q", s)
	}
	v, err := parseLiteral(lit)
	return strings.TrimSpace(name), v, err
}

func parseWhere(s string) (*engine.Where, error) {
	if s == "" {
		return nil, nil
	}
	col, v, err := parseAssignment(s)
	if err != nil {
		return nil, err
	}
	return &engine.Where{Column: col, Value: v}, nil
}

// sqlLiteral renders v so that SQLite reads back the same value.
func sqlLiteral(v types.OwnedValue) string {
	switch v.Kind {
	case types.KindInteger:
		return strconv.FormatInt(v.I64, 10)
	case types.KindFloat:
		switch {
		case math.IsNaN(v.F64):
			return "NULL"
		case math.IsInf(v.F64, 1):
			return "1e999"
		case math.IsInf(v.F64, -1):
			return "-1e999"
		}
		s := strconv.FormatFloat(v.F64, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case types.KindText:
		return "'" + strings.ReplaceAll(v.Text.Value, "'", "''") + "'"
	case types.KindBlob:
		return "X'" + strings.ToUpper(hex.EncodeToString(v.Blob.Bytes())) + "'"
	}
	return "NULL"
}

func quoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
