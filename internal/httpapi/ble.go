package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"invoice-printer-bridge/internal/ble"
)

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	cfg := s.configSnapshot()
	var req struct {
		Seconds int `json:"seconds"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Seconds <= 0 {
		req.Seconds = 8
	}

	s.log.Info("ble scan start: seconds=%d filter=%q", req.Seconds, cfg.BLE.DeviceNameContains)
	hits, err := ble.Scan(r.Context(), time.Duration(req.Seconds)*time.Second, cfg.BLE.DeviceNameContains)
	if err != nil {
		s.log.Error("ble scan error: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ble.ErrScanBusy) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	s.log.Info("ble scan done: found=%d", len(hits))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "found": hits})
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Address == "" {
		req.Address = s.configSnapshot().BLE.PrinterAddress
	}

	address, err := ble.NormalizeAddress(req.Address)
	if err != nil {
		s.log.Warn("ble connect rejected: raw_address=%q err=%v", req.Address, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("ble connect start: address=%s", address)
	if err := s.client.Connect(address); err != nil {
		s.log.Error("ble connect error: address=%s err=%v", address, err)
		go s.logConnectDebugScan(address)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("%v (address=%s; verify the printer is advertising and run /ble/scan)", err, address))
		return
	}
	s.log.Info("ble connect ok: address=%s", address)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "address": address})
}

// logConnectDebugScan records whether the target was advertising after a
// failed connect.
func (s *Server) logConnectDebugScan(address string) {
	hits, err := ble.Scan(context.Background(), 4*time.Second, "")
	if errors.Is(err, ble.ErrScanBusy) {
		s.log.Info("ble connect debug scan skipped: another scan already in progress")
		return
	}
	if err != nil {
		s.log.Warn("ble connect debug scan failed: %v", err)
		return
	}

	visible := false
	for i, hit := range hits {
		if hit.Address == address {
			visible = true
		}
		if i < 8 {
			s.log.Debug("ble connect debug hit[%d]: address=%s name=%q rssi=%d", i, hit.Address, hit.Name, hit.RSSI)
		}
	}
	s.log.Info("ble connect debug scan done: hits=%d target_visible=%v", len(hits), visible)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "connected": s.client.IsConnected()})
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.client.Disconnect(); err != nil {
		s.log.Error("ble disconnect error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("ble disconnect ok")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "connected": false})
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	desc, err := s.client.Describe()
	if err != nil {
		s.log.Error("ble describe error: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ble.ErrNotConnected) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	s.log.Info("ble describe ok: services=%d", len(desc.Services))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "device": desc})
}
