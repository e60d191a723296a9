// Package validate runs struct-tag validation for request payloads.
//
// Rules are comma-separated in the `validate` tag:
//
//	required     field must not be zero or blank
//	nullable     an empty field skips its remaining rules
//	numeric      any number
//	integer      whole number
//	min=N        string length, item count or numeric value lower bound
//	max=N        the matching upper bound
//	in=a,b,c     value must be one of the listed items
//	not_in=a,b   value must not be one of the listed items
//
// Only the first failing rule of a field is reported, keyed by its json name.
//
//	type RenameInput struct {
//	    ID   string `json:"id"   validate:"required"`
//	    Name string `json:"name" validate:"required,max=255"`
//	    Mode string `json:"mode" validate:"nullable,in=database,storage"`
//	}
package validate

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Rule checks v against param and returns a message, or "" when v passes.
type Rule func(field string, v reflect.Value, param string) string

var (
	rulesMu sync.RWMutex
	rules   = map[string]Rule{
		"required": required,
		"numeric":  numeric,
		"integer":  integer,
		"min":      bound(false),
		"max":      bound(true),
		"in":       oneOf(true),
		"not_in":   oneOf(false),
	}
	// listRules swallow the comma-separated items that follow them.
	listRules = map[string]bool{"in": true, "not_in": true}

	plans sync.Map // reflect.Type -> []fieldPlan
)

// Register adds or replaces a rule. It is not a list rule.
func Register(name string, r Rule) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules[name] = r
	plans.Range(func(k, _ any) bool { plans.Delete(k); return true })
}

type check struct {
	name  string
	param string
}

type fieldPlan struct {
	index    int
	name     string
	nullable bool
	checks   []check
}

// Struct validates the exported, tagged fields of v, which may be a struct
// or a pointer to one. The result is empty when v is valid.
func Struct(v any) map[string]string {
	errs := map[string]string{}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return errs
	}

	rulesMu.RLock()
	defer rulesMu.RUnlock()
	for _, fp := range planFor(rv.Type()) {
		fv := rv.Field(fp.index)
		if fp.nullable && isEmpty(fv) {
			continue
		}
		for _, c := range fp.checks {
			rule, ok := rules[c.name]
			if !ok {
				continue
			}
			if msg := rule(fp.name, fv, c.param); msg != "" {
				errs[fp.name] = msg
				break
			}
		}
	}
	return errs
}

// HasErrors reports whether errs holds any failure.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func planFor(t reflect.Type) []fieldPlan {
	if p, ok := plans.Load(t); ok {
		return p.([]fieldPlan)
	}
	var out []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("validate")
		if !ok || tag == "" || !f.IsExported() {
			continue
		}
		fp := fieldPlan{index: i, name: jsonName(f)}
		for _, c := range parseTag(tag) {
			if c.name == "nullable" {
				fp.nullable = true
				continue
			}
			fp.checks = append(fp.checks, c)
		}
		out = append(out, fp)
	}
	plans.Store(t, out)
	return out
}

// parseTag keeps list rule items together:
// "required,in=a,b,max=3" is required, in=a,b and max=3.
func parseTag(tag string) []check {
	var out []check
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, param, _ := strings.Cut(part, "=")
		_, known := rules[name]
		if n := len(out); n > 0 && !known && name != "nullable" && listRules[out[n-1].name] {
			out[n-1].param += "," + part
			continue
		}
		out = append(out, check{name: name, param: param})
	}
	return out
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}

func required(field string, v reflect.Value, _ string) string {
	if isEmpty(v) {
		return fmt.Sprintf("The %s field is required.", field)
	}
	return ""
}

func numeric(field string, v reflect.Value, _ string) string {
	if _, err := strconv.ParseFloat(text(v), 64); err != nil {
		return fmt.Sprintf("The %s field must be a number.", field)
	}
	return ""
}

func integer(field string, v reflect.Value, _ string) string {
	if _, err := strconv.ParseInt(text(v), 10, 64); err != nil {
		return fmt.Sprintf("The %s field must be an integer.", field)
	}
	return ""
}

// bound builds min (upper=false) and max (upper=true).
func bound(upper bool) Rule {
	return func(field string, v reflect.Value, param string) string {
		limit, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
		if err != nil {
			return ""
		}

		var got float64
		var msg string
		switch {
		case isNumber(v):
			got = number(v)
			msg = pick(upper, "The %s must not be greater than %s.", "The %s must be at least %s.")
		case isCollection(v):
			got = float64(v.Len())
			msg = pick(upper, "The %s must not have more than %s items.", "The %s must have at least %s items.")
		default:
			got = float64(len([]rune(text(v))))
			msg = pick(upper, "The %s must not exceed %s characters.", "The %s must be at least %s characters.")
		}

		if (upper && got > limit) || (!upper && got < limit) {
			return fmt.Sprintf(msg, field, param)
		}
		return ""
	}
}

// oneOf builds in (member=true) and not_in (member=false).
func oneOf(member bool) Rule {
	return func(field string, v reflect.Value, param string) string {
		raw := text(v)
		found := false
		for _, item := range strings.Split(param, ",") {
			if raw == strings.TrimSpace(item) {
				found = true
				break
			}
		}
		if found != member {
			return fmt.Sprintf("The selected %s is invalid.", field)
		}
		return ""
	}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func text(v reflect.Value) string { return fmt.Sprint(v.Interface()) }

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	}
	return isNumber(v) && number(v) == 0
}

func isCollection(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return true
	}
	return false
}

func isNumber(v reflect.Value) bool {
	return v.CanInt() || v.CanUint() || v.CanFloat()
}

func number(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	case v.CanFloat():
		return v.Float()
	}
	return 0
}
