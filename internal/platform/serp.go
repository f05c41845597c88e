package platform

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Search engines.
const (
	EngineGoogle = "google"
	EngineBing   = "bing"
	EngineYandex = "yandex"
)

// SearchParams configures a SERP URL.
type SearchParams struct {
	Query      string
	Country    string
	Language   string
	NumResults int
	Page       int
	Mobile     bool
}

var countryAliases = map[string]string{
	"united states":  "us",
	"usa":            "us",
	"united kingdom": "gb",
	"uk":             "gb",
	"canada":         "ca",
	"australia":      "au",
	"germany":        "de",
	"france":         "fr",
	"spain":          "es",
	"italy":          "it",
	"japan":          "jp",
	"china":          "cn",
	"india":          "in",
	"brazil":         "br",
	"russia":         "ru",
	"ukraine":        "ua",
	"belarus":        "by",
	"poland":         "pl",
	"netherlands":    "nl",
	"sweden":         "se",
	"norway":         "no",
	"denmark":        "dk",
	"finland":        "fi",
	"mexico":         "mx",
	"argentina":      "ar",
	"south korea":    "kr",
	"singapore":      "sg",
	"new zealand":    "nz",
	"south africa":   "za",
}

var yandexRegions = map[string]string{
	"ru": "225",
	"ua": "187",
	"by": "149",
	"kz": "159",
	"tr": "983",
}

// CountryCode maps a country name or two-letter code to a lower-case code.
// Unknown names fall back to us.
func CountryCode(location string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if len(loc) == 2 {
		return loc
	}
	if code, ok := countryAliases[loc]; ok {
		return code
	}
	if code, ok := countryAliases[strings.ReplaceAll(loc, "_", " ")]; ok {
		return code
	}
	return "us"
}

// Engines lists supported search engines.
func Engines() []string {
	return []string{EngineGoogle, EngineBing, EngineYandex}
}

// SupportedEngine reports whether engine has a URL builder.
func SupportedEngine(engine string) bool {
	switch strings.ToLower(engine) {
	case EngineGoogle, EngineBing, EngineYandex:
		return true
	}
	return false
}

// SearchURL builds the results page URL for engine.
func SearchURL(engine string, p SearchParams) (string, error) {
	if strings.TrimSpace(p.Query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if p.NumResults <= 0 {
		p.NumResults = 10
	}
	if p.Language == "" {
		p.Language = "en"
	}
	switch strings.ToLower(engine) {
	case EngineGoogle:
		return googleURL(p), nil
	case EngineBing:
		return bingURL(p), nil
	case EngineYandex:
		return yandexURL(p), nil
	default:
		return "", fmt.Errorf("unsupported search engine %q (supported: %s)", engine, strings.Join(Engines(), ", "))
	}
}

// ParsedResults reports whether the engine's URL asks the remote side for
// structured results, which must be requested in json format.
func ParsedResults(searchURL string) bool {
	return strings.Contains(searchURL, "brd_json=1")
}

func googleURL(p SearchParams) string {
	var b strings.Builder
	b.WriteString("https://www.google.com/search?q=")
	b.WriteString(url.QueryEscape(p.Query))
	b.WriteString("&num=" + strconv.Itoa(p.NumResults))
	b.WriteString("&brd_json=1")
	b.WriteString("&hl=" + url.QueryEscape(p.Language))
	if p.Country != "" {
		b.WriteString("&gl=" + CountryCode(p.Country))
	}
	if p.Page > 1 {
		b.WriteString("&start=" + strconv.Itoa((p.Page-1)*p.NumResults))
	}
	if p.Mobile {
		b.WriteString("&mobileaction=1")
	}
	return b.String()
}

func bingURL(p SearchParams) string {
	var b strings.Builder
	b.WriteString("https://www.bing.com/search?q=")
	b.WriteString(url.QueryEscape(p.Query))
	b.WriteString("&count=" + strconv.Itoa(p.NumResults))
	if p.Country != "" {
		b.WriteString("&mkt=" + url.QueryEscape(p.Language) + "_" + strings.ToUpper(CountryCode(p.Country)))
	}
	if p.Page > 1 {
		b.WriteString("&first=" + strconv.Itoa((p.Page-1)*p.NumResults+1))
	}
	return b.String()
}

func yandexURL(p SearchParams) string {
	var b strings.Builder
	b.WriteString("https://yandex.com/search/?text=")
	b.WriteString(url.QueryEscape(p.Query))
	b.WriteString("&numdoc=" + strconv.Itoa(p.NumResults))
	if p.Country != "" {
		region, ok := yandexRegions[CountryCode(p.Country)]
		if !ok {
			region = "225"
		}
		b.WriteString("&lr=" + region)
	}
	if p.Page > 1 {
		b.WriteString("&p=" + strconv.Itoa(p.Page-1))
	}
	return b.String()
}
