// Package validate checks caller input before any network call is made.
// Failures are reported as *sdkerr.ValidationError.
package validate

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

var zoneNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("zonename", func(fl validator.FieldLevel) bool {
			return zoneNamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || v.Var(strings.ToUpper(s), "iso3166_1_alpha2") == nil
		})
		_ = v.RegisterValidation("httpmethod", func(fl validator.FieldLevel) bool {
			return isMethod(fl.Field().String())
		})
	})
	return v
}

// URL requires an absolute http or https URL with a host.
func URL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return sdkerr.Validationf(field, "URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return sdkerr.Validationf(field, "invalid URL %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return sdkerr.Validationf(field, "URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return sdkerr.Validationf(field, "URL %q has no host", raw)
	}
	if err := instance().Var(raw, "http_url"); err != nil {
		return sdkerr.Validationf(field, "invalid URL %q", raw)
	}
	return nil
}

// URLs validates every entry and rejects an empty list.
func URLs(field string, raws []string) error {
	if len(raws) == 0 {
		return sdkerr.Validationf(field, "at least one URL is required")
	}
	for i, raw := range raws {
		if err := URL(fmt.Sprintf("%s[%d]", field, i), raw); err != nil {
			return err
		}
	}
	return nil
}

// ZoneName requires letters, digits, underscores or dashes.
func ZoneName(name string) error {
	if name == "" {
		return sdkerr.Validationf("zone", "zone name is required")
	}
	if !zoneNamePattern.MatchString(name) {
		return sdkerr.Validationf("zone", "zone name %q may only contain letters, digits, '_' and '-'", name)
	}
	return nil
}

// Country accepts an empty value or an ISO 3166-1 alpha-2 code in any case.
func Country(code string) error {
	if code == "" {
		return nil
	}
	if instance().Var(strings.ToUpper(code), "iso3166_1_alpha2") != nil {
		return sdkerr.Validationf("country", "%q is not an ISO 3166-1 alpha-2 country code", code)
	}
	return nil
}

// ResponseFormat accepts raw or json.
func ResponseFormat(format string) error {
	if format != "raw" && format != "json" {
		return sdkerr.Validationf("format", "response format must be raw or json, got %q", format)
	}
	return nil
}

// Method accepts standard HTTP methods.
func Method(method string) error {
	if !isMethod(method) {
		return sdkerr.Validationf("method", "%q is not a standard HTTP method", method)
	}
	return nil
}

// Struct validates a tagged struct and converts the first failure.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return sdkerr.Validationf(toSnake(fe.Field()), "failed %q check (value %v)", fe.Tag(), fe.Value())
	}
	return sdkerr.Validationf("", "%v", err)
}

func isMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodPatch, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
