package httpapi

import (
	"net/http"
	"regexp"
	"slices"
	"strings"

	"invoice-printer-bridge/internal/config"
	"invoice-printer-bridge/internal/logging"
)

const (
	corsAllowMethods = "GET,POST,OPTIONS"
	corsAllowHeaders = "content-type,authorization,x-api-key"
	corsAnyOrigin    = "*"
	corsMaxAge       = "600"
)

// corsRules is the compiled form of the [cors] config section.
type corsRules struct {
	any      bool
	exact    map[string]bool
	patterns []*regexp.Regexp
}

func newCORSRules(cfg *config.Config, log *logging.Logger) *corsRules {
	rules := &corsRules{exact: make(map[string]bool)}
	for _, origin := range splitList(cfg.CORS.AllowOrigins) {
		if origin == corsAnyOrigin {
			rules.any = true
			continue
		}
		rules.exact[trimOrigin(origin)] = true
	}
	for _, raw := range splitList(cfg.CORS.AllowOriginPatterns) {
		re, err := compileOriginPattern(raw)
		if err != nil {
			log.Warn("cors: ignoring origin pattern %q: %v", raw, err)
			continue
		}
		rules.patterns = append(rules.patterns, re)
	}

	exact := make([]string, 0, len(rules.exact))
	for origin := range rules.exact {
		exact = append(exact, origin)
	}
	slices.Sort(exact)
	log.Info("cors: any=%t origins=%v patterns=%d", rules.any, exact, len(rules.patterns))
	return rules
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// compileOriginPattern treats '*' as a wildcard and anything else
// literally. Patterns without '*' are taken as regular expressions.
func compileOriginPattern(pattern string) (*regexp.Regexp, error) {
	if !strings.Contains(pattern, "*") {
		return regexp.Compile(pattern)
	}
	quoted := regexp.QuoteMeta(pattern)
	return regexp.Compile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}

func trimOrigin(origin string) string {
	return strings.TrimSuffix(strings.TrimSpace(origin), "/")
}

// allows reports whether origin may read responses, and why.
func (c *corsRules) allows(origin string) (bool, string) {
	origin = trimOrigin(origin)
	switch {
	case origin == "":
		return false, "missing origin"
	case c.any:
		return true, "any origin"
	case c.exact[origin]:
		return true, "explicit allowlist"
	}
	for _, re := range c.patterns {
		if re.MatchString(origin) {
			return true, "pattern " + re.String()
		}
	}
	return false, "not allowed"
}

// corsMiddleware answers preflight requests itself, before authentication,
// and reads the rules on every request so config updates apply at once.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return corsHandler(s.log, s.currentCORS, next)
}

func corsHandler(log *logging.Logger, current func() *corsRules, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Private-Network", "true")

		if origin := r.Header.Get("Origin"); origin != "" {
			if ok, reason := current().allows(origin); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			} else {
				log.Debug("cors reject origin %q: %s", origin, reason)
			}
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		w.WriteHeader(http.StatusNoContent)
	})
}
