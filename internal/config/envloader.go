package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LoadFromEnv overrides fields of cfg from the environment variables named
// by their `env` struct tags, recursing into nested structs. Unset or empty
// variables leave the field alone. String slices are split on the `envsep`
// tag, or on commas when it is absent.
func LoadFromEnv(cfg interface{}) error {
	return loadFromEnv(reflect.ValueOf(cfg), os.LookupEnv)
}

func loadFromEnv(v reflect.Value, lookup func(string) (string, bool)) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadFromEnv(field, lookup); err != nil {
				return err
			}
			continue
		}

		envVar := fieldType.Tag.Get("env")
		if envVar == "" {
			continue
		}
		value, ok := lookup(envVar)
		if !ok || value == "" {
			continue
		}

		if err := setFieldValue(field, fieldType, value, envVar); err != nil {
			return err
		}
	}
	return nil
}

// setFieldValue parses value into field according to its kind.
func setFieldValue(field reflect.Value, fieldType reflect.StructField, value, envVar string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration for %s (%s): %w", fieldType.Name, envVar, err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s (%s): %w", fieldType.Name, envVar, err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s (%s): %w", fieldType.Name, envVar, err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type for %s (%s)", fieldType.Name, envVar)
		}
		sep := fieldType.Tag.Get("envsep")
		if sep == "" {
			sep = ","
		}
		var values []string
		for _, part := range strings.Split(value, sep) {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		field.Set(reflect.ValueOf(values))

	default:
		return fmt.Errorf("unsupported type %s for %s (%s)", field.Kind(), fieldType.Name, envVar)
	}

	return nil
}
