package server

import (
	"net/http"

	"github.com/wolfeidau/traceledger/internal/api"
)

func (s *Server) getRegistryOwner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.OwnerResponse{Owner: s.svc.RegistryOwner()})
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.TransferOwnershipRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.TransferOwnership(r.Context(), id, req.NewOwner); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OwnerResponse{Owner: req.NewOwner.Normalize()})
}

func (s *Server) listOrganizationCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.OrganizationCodesResponse{Codes: orEmpty(s.svc.ListOrganizationCodes())})
}

func (s *Server) registerOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.RegisterOrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := s.svc.RegisterOrganization(r.Context(), id, req.Code, req.Name, req.Wallet)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.svc.GetOrganizationInfo(r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) modifyOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.ModifyOrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := s.svc.ModifyOrganization(r.Context(), id, r.PathValue("code"), req.Name, req.Wallet)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) deactivateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeactivateOrganization(r.Context(), id, r.PathValue("code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deriveOrganizationID(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	// derived from the code alone, never changes
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	writeJSON(w, http.StatusOK, api.OrganizationIDResponse{Code: code, OrgID: s.svc.DeriveOrganizationID(code)})
}

func (s *Server) listLedgers(w http.ResponseWriter, r *http.Request) {
	handles, err := s.svc.ListLedgers(r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.LedgersResponse{Handles: orEmpty(handles)})
}

func (s *Server) createLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.CreateLedgerRequest
	if !decode(w, r, &req) {
		return
	}
	handle, err := s.svc.CreateLedger(r.Context(), id, r.PathValue("code"), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreateLedgerResponse{Handle: handle})
}
