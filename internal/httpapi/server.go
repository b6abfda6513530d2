package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"invoice-printer-bridge/internal/ble"
	"invoice-printer-bridge/internal/config"
	"invoice-printer-bridge/internal/cups"
	"invoice-printer-bridge/internal/invoice"
	"invoice-printer-bridge/internal/logging"
	"invoice-printer-bridge/internal/metrics"
	"invoice-printer-bridge/internal/printing"
	"invoice-printer-bridge/internal/receipt"
)

const maxBodyBytes = 1 << 20

type Server struct {
	cfg       *config.Config
	cfgPath   string
	log       *logging.Logger
	client    *ble.Client
	jobs      *printing.Dispatcher
	cors      *corsRules
	formatter *receipt.Formatter
	limiter   *rate.Limiter
	cfgMu     sync.RWMutex

	// connector picks the device transport for a config snapshot.
	connector func(cfg config.Config) printing.Connector
}

func NewServer(cfg *config.Config, cfgPath string, log *logging.Logger) *Server {
	if cfg.Printer.Transport == config.TransportBLE {
		if err := ble.Enable(); err != nil {
			log.Error("ble enable failed: %v", err)
		} else {
			log.Info("ble adapter enabled")
		}
	}
	srv := newServer(cfg, cfgPath, log)
	srv.connector = srv.deviceConnector
	return srv
}

func newServer(cfg *config.Config, cfgPath string, log *logging.Logger) *Server {
	srv := &Server{
		cfgPath: cfgPath,
		log:     log,
		client:  &ble.Client{},
		jobs:    printing.NewDispatcher(log),
	}
	srv.replaceConfig(cfg)
	return srv
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics are intentionally unauthenticated
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/print/invoice", s.withRequestLog(s.requireAuth(s.limitPrint(s.printInvoice))))
	mux.HandleFunc("/print/text", s.withRequestLog(s.requireAuth(s.limitPrint(s.printText))))
	mux.HandleFunc("/print/raw", s.withRequestLog(s.requireAuth(s.limitPrint(s.printRaw))))
	mux.HandleFunc("/printer/status", s.withRequestLog(s.requireAuth(s.printerStatus)))

	mux.HandleFunc("/ble/scan", s.withRequestLog(s.requireAuth(s.scan)))
	mux.HandleFunc("/ble/connect", s.withRequestLog(s.requireAuth(s.connect)))
	mux.HandleFunc("/ble/disconnect", s.withRequestLog(s.requireAuth(s.disconnect)))
	mux.HandleFunc("/ble/status", s.withRequestLog(s.requireAuth(s.status)))
	mux.HandleFunc("/ble/describe", s.withRequestLog(s.requireAuth(s.describe)))

	mux.HandleFunc("/config", s.withRequestLog(s.requireAuth(s.configHandler)))

	// Clients of the original service post invoices to the root path.
	mux.HandleFunc("/{$}", s.withRequestLog(s.requireAuth(s.limitPrint(s.printInvoice))))

	return s.accessLog(s.corsMiddleware(mux))
}

func (s *Server) Run() error {
	cfg := s.configSnapshot()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.log.Info("listening on http://%s transport=%s printer=%q width=%d", addr, cfg.Printer.Transport, cfg.Printer.Name, cfg.Printer.ReceiptWidth)
	return http.ListenAndServe(addr, s.Handler())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, elapsed)
		s.log.Info("http %s %s %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
	})
}

func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("recv %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next(w, r)
	}
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.currentAPIKey() {
			s.log.Warn("unauthorized %s %s", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next(w, r)
	}
}

func (s *Server) limitPrint(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.currentLimiter().Allow() {
			s.log.Warn("rate limited %s %s", r.Method, r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many print requests")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// printStatus maps a print failure to the response code.
func printStatus(err error) int {
	var formatErr *receipt.FormatError
	switch {
	case errors.As(err, &formatErr):
		return http.StatusBadRequest
	case errors.Is(err, cups.ErrPrinterNotFound), errors.Is(err, ble.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) printContext(r *http.Request, cfg config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second)
}

func (s *Server) printInvoice(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	cfg := s.configSnapshot()
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := invoice.Decode(body, invoice.Defaults{
		CompanyName: cfg.Printer.CompanyName,
		BranchName:  cfg.Printer.BranchName,
		Phone:       cfg.Printer.Phone,
	})
	if err != nil {
		s.log.Warn("print/invoice rejected: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.printContext(r, cfg)
	defer cancel()
	layout := printing.Layout{Width: cfg.Printer.ReceiptWidth, DotWidth: cfg.Printer.DotWidth}
	job, err := s.jobs.PrintInvoice(ctx, s.connector(cfg), s.currentFormatter(), inv, layout)
	if err != nil {
		s.log.Error("print/invoice %s failed: %v", inv.InvoiceNumber, err)
		writeError(w, printStatus(err), err.Error())
		return
	}
	s.log.Info("print/invoice %s ok: job=%s items=%d", inv.InvoiceNumber, job.ID, len(inv.Items))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Invoice printed successfully",
		"job_id":  job.ID,
	})
}

func (s *Server) printText(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	cfg := s.configSnapshot()
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	ctx, cancel := s.printContext(r, cfg)
	defer cancel()
	job, err := s.jobs.PrintText(ctx, s.connector(cfg), req.Text)
	if err != nil {
		writeError(w, printStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) printRaw(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	cfg := s.configSnapshot()
	var req struct {
		Base64 []byte `json:"base64"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || len(req.Base64) == 0 {
		writeError(w, http.StatusBadRequest, "invalid body: expected base64 data")
		return
	}

	ctx, cancel := s.printContext(r, cfg)
	defer cancel()
	job, err := s.jobs.PrintRaw(ctx, s.connector(cfg), req.Base64)
	if err != nil {
		writeError(w, printStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) printerStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	cfg := s.configSnapshot()
	resp := map[string]any{"transport": cfg.Printer.Transport, "printer": cfg.Printer.Name, "available": true}
	if p, ok := s.connector(cfg).(printing.Prober); ok {
		ctx, cancel := s.printContext(r, cfg)
		defer cancel()
		if err := p.Available(ctx); err != nil {
			resp["available"] = false
			resp["error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deviceConnector(cfg config.Config) printing.Connector {
	if cfg.Printer.Transport == config.TransportBLE {
		return &ble.Connector{
			Client:       s.client,
			ServiceUUID:  cfg.BLE.ServiceUUID,
			CharUUID:     cfg.BLE.WriteCharacteristicUUID,
			ChunkSize:    cfg.BLE.ChunkSize,
			WithResponse: cfg.BLE.WriteWithResponse,
		}
	}
	return cups.New(cfg.Printer.Name)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
