package httpapi

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"invoice-printer-bridge/internal/config"
	"invoice-printer-bridge/internal/printing"
	"invoice-printer-bridge/internal/receipt"
)

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getConfig(w, r)
	case http.MethodPost:
		s.setConfig(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": cfg})
}

func (s *Server) setConfig(w http.ResponseWriter, r *http.Request) {
	var next config.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	config.ApplyDefaults(&next)
	if err := config.Validate(&next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if current := s.configSnapshot(); current.Printer.Transport != next.Printer.Transport {
		s.log.Warn("config: transport change %s -> %s takes effect for new jobs", current.Printer.Transport, next.Printer.Transport)
	}
	if err := config.Save(s.cfgPath, &next); err != nil {
		s.log.Error("config save error: %v", err)
		writeError(w, http.StatusInternalServerError, "config save failed")
		return
	}
	s.replaceConfig(&next)
	s.log.Info("config updated")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) currentAPIKey() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Auth.ApiKey
}

func (s *Server) configSnapshot() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return *s.cfg
}

func (s *Server) currentFormatter() *receipt.Formatter {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.formatter
}

func (s *Server) currentLimiter() *rate.Limiter {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.limiter
}

func (s *Server) currentCORS() *corsRules {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cors
}

// replaceConfig swaps in cfg together with everything derived from it: the
// CORS rules, the print rate limiter and the formatter with its logo. A
// logo that fails to load is logged and left out.
func (s *Server) replaceConfig(cfg *config.Config) {
	logo, err := printing.LoadLogo(cfg.Printer.LogoPath)
	if err != nil {
		s.log.Warn("logo disabled: %v", err)
	} else if logo == nil {
		s.log.Info("no logo at %q; customer copy prints without one", cfg.Printer.LogoPath)
	}
	if cfg.Printer.ReceiptWidth < receipt.MinLineWidth {
		s.log.Warn("receipt width %d is below %d columns; layout may wrap", cfg.Printer.ReceiptWidth, receipt.MinLineWidth)
	}
	perMinute := max(cfg.Server.PrintRatePerMinute, 1)
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60), max(perMinute/6, 1))
	cors := newCORSRules(cfg, s.log)

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
	s.cors = cors
	s.limiter = limiter
	s.formatter = receipt.NewFormatter(logo)
}
