package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// MarshalEnv reflects over the struct and creates .env content from tags.
// Zero-valued fields are skipped.
func MarshalEnv(c any) (string, error) {
	var lines []string
	err := walk(c, func(key string, field reflect.StructField, val reflect.Value) {
		if val.IsZero() {
			return
		}
		lines = append(lines, fmt.Sprintf("%s=%s", key, formatValue(val)))
	})
	if err != nil {
		return "", err
	}
	return joinLines(lines), nil
}

// Template renders a commented .env file listing every tagged field of the given structs.
// Fields with a default are written as KEY=default, the rest are commented out.
func Template(sections map[string]any, order ...string) (string, error) {
	var lines []string
	for _, name := range order {
		c, ok := sections[name]
		if !ok {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "# "+name)

		err := walk(c, func(key string, field reflect.StructField, _ reflect.Value) {
			def, hasDefault := field.Tag.Lookup("envDefault")
			required := strings.Contains(field.Tag.Get("env"), ",required")
			switch {
			case hasDefault:
				lines = append(lines, fmt.Sprintf("%s=%s", key, def))
			case required:
				lines = append(lines, fmt.Sprintf("%s=  # required", key))
			default:
				lines = append(lines, fmt.Sprintf("# %s=", key))
			}
		})
		if err != nil {
			return "", fmt.Errorf("section %s: %w", name, err)
		}
	}
	return joinLines(lines), nil
}

func walk(c any, fn func(key string, field reflect.StructField, val reflect.Value)) error {
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("expected pointer to struct, got %T", c)
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		// Parse tag: "KEY,required,notEmpty" or "KEY"
		key, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if key == "" {
			continue
		}
		fn(key, field, v.Field(i))
	}
	return nil
}

func joinLines(lines []string) string {
	result := strings.Join(lines, "\n")
	if result != "" && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result
}

// formatValue converts a reflect.Value to its string representation
func formatValue(v reflect.Value) string {
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
