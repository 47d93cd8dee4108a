package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LoadFromEnv overrides fields of cfg from environment variables. A field's
// variable name is prefix followed by its `env` tag; nested structs are
// walked recursively and unset variables leave the field untouched.
func LoadFromEnv(cfg any, prefix string) error {
	return loadFromEnv(reflect.ValueOf(cfg), prefix)
}

func loadFromEnv(v reflect.Value, prefix string) error {
	if v.Kind() == reflect.Pointer {
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
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadFromEnv(field, prefix); err != nil {
				return err
			}
			continue
		}

		tag := t.Field(i).Tag.Get("env")
		if tag == "" {
			continue
		}

		name := prefix + tag
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}

		if err := setField(field, value, name); err != nil {
			return err
		}
	}

	return nil
}

func setField(field reflect.Value, value, name string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %w", name, err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", name, err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", name, err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported type %s for %s", field.Kind(), name)
	}

	return nil
}
