// Package calc inlines the result of arithmetic typed into a note.
//
// Typing an expression followed by the trigger character ("12*3=") appends the
// numeric result ("12*3=36"). Anything that does not evaluate cleanly is left
// alone.
package calc

import (
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// Trigger is the character that requests evaluation.
const Trigger = '='

const (
	exprChars = "0123456789.+-*/%^() \t"
	operators = "+-*/%^"
)

// Expand evaluates the arithmetic expression immediately preceding a trailing
// Trigger and returns text with the result appended.
// ok is false when text does not end in Trigger or evaluation fails.
func Expand(text string) (result string, ok bool) {
	if !strings.HasSuffix(text, string(Trigger)) {
		return text, false
	}
	body := text[:len(text)-1]

	start := len(body)
	for start > 0 && strings.IndexByte(exprChars, body[start-1]) >= 0 {
		start--
	}
	expression := strings.TrimSpace(body[start:])
	if !strings.ContainsAny(expression, operators) || !strings.ContainsAny(expression, "0123456789") {
		return text, false
	}

	value, err := Eval(expression)
	if err != nil {
		return text, false
	}
	return text + value, true
}

// Eval evaluates a pure arithmetic expression and formats the number.
func Eval(expression string) (string, error) {
	for _, r := range expression {
		if !strings.ContainsRune(exprChars, r) {
			return "", &SyntaxError{Expr: expression, Reason: "unsupported character " + strconv.QuoteRune(r)}
		}
	}

	program, err := expr.Compile(expression, expr.AsFloat64())
	if err != nil {
		return "", &SyntaxError{Expr: expression, Reason: err.Error()}
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return "", &SyntaxError{Expr: expression, Reason: err.Error()}
	}

	f, isFloat := out.(float64)
	if !isFloat || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &SyntaxError{Expr: expression, Reason: "result is not a finite number"}
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// SyntaxError reports an expression that could not be evaluated.
type SyntaxError struct {
	Expr   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return "calc: " + e.Expr + ": " + e.Reason
}
