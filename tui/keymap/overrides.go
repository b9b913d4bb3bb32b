package keymap

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
)

var bindingType = reflect.TypeOf(key.Binding{})

// ApplyOverrides replaces the keys of every key.Binding field of km (a
// pointer to a struct, embedded structs included) named in overrides.
// Action names are the snake_case field names: PageDown is "page_down".
// Empty key lists are ignored and the help text of a binding is kept.
//
// It returns the override names that matched no binding, sorted.
func ApplyOverrides(km interface{}, overrides Overrides) []string {
	if len(overrides) == 0 {
		return nil
	}

	v := reflect.ValueOf(km)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	seen := make(map[string]bool)
	applyTo(v.Elem(), overrides, seen)

	var unknown []string
	for name := range overrides {
		if !seen[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func applyTo(v reflect.Value, overrides Overrides, seen map[string]bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field, sf := v.Field(i), t.Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Anonymous && field.Kind() == reflect.Struct {
			applyTo(field, overrides, seen)
			continue
		}
		if sf.Type != bindingType {
			continue
		}

		name := actionName(sf.Name)
		keys, ok := overrides[name]
		if !ok {
			continue
		}
		seen[name] = true
		if len(keys) == 0 {
			continue
		}

		desc := field.Interface().(key.Binding).Help().Desc
		field.Set(reflect.ValueOf(key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(strings.Join(keys, "/"), desc),
		)))
	}
}

// actionName converts a field name to its config name. Runs of capitals
// stay together: PageUp is page_up, PIDPrompt is pid_prompt.
func actionName(field string) string {
	runes := []rune(field)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteRune('_')
				}
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
