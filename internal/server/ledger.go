package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wolfeidau/traceledger/internal/api"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
)

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.LedgerInfo(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.ListProducts(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ProductsResponse{Products: orEmpty(products)})
}

func (s *Server) listProductIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.GetAllProductIDs(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ProductIDsResponse{IDs: orEmpty(ids)})
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.AddProductRequest
	if !decode(w, r, &req) {
		return
	}
	handle := r.PathValue("handle")
	if err := s.svc.AddProduct(r.Context(), id, handle, req.ID, req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ProductInfo{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.GetProductInfo(r.PathValue("handle"), r.PathValue("product"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeactivateProduct(r.Context(), id, r.PathValue("handle"), r.PathValue("product")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	info, err := s.svc.ReactivateProduct(r.Context(), id, r.PathValue("handle"), r.PathValue("product"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.svc.GetProductBatches(r.PathValue("handle"), r.PathValue("product"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.BatchesResponse{Batches: orEmpty(batches)})
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.svc.GetProductByBatch(r.PathValue("handle"), r.PathValue("product"), r.PathValue("batch"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) updateProcesses(w http.ResponseWriter, r *http.Request) {
	s.updateBatch(w, r, s.svc.UpdateProductProcesses)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	s.updateBatch(w, r, s.svc.UpdateProductStatus)
}

type batchUpdate func(ctx context.Context, caller models.Identity, handle, productID, batchID, value string) (models.Batch, error)

func (s *Server) updateBatch(w http.ResponseWriter, r *http.Request, update batchUpdate) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.UpdateBatchRequest
	if !decode(w, r, &req) {
		return
	}
	batch, err := update(r.Context(), id, r.PathValue("handle"), r.PathValue("product"), r.PathValue("batch"), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func capabilityParam(w http.ResponseWriter, r *http.Request) (auth.Capability, bool) {
	c, err := auth.ParseCapability(r.PathValue("capability"))
	if err != nil {
		badRequest(w, err.Error())
		return "", false
	}
	return c, true
}

func (s *Server) listRoleMembers(w http.ResponseWriter, r *http.Request) {
	c, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	members, err := s.svc.RoleMembers(r.PathValue("handle"), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MembersResponse{Capability: string(c), Members: orEmpty(members)})
}

func (s *Server) grantRole(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	c, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	var req api.GrantRoleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.GrantRole(r.Context(), id, r.PathValue("handle"), req.Identity, c); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revokeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	c, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	target := models.Identity(r.PathValue("identity"))
	if err := s.svc.RevokeRole(r.Context(), id, r.PathValue("handle"), target, c); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCapabilities(w http.ResponseWriter, r *http.Request) {
	target := models.Identity(r.PathValue("identity"))
	caps, err := s.svc.Capabilities(r.PathValue("handle"), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, string(c))
	}
	writeJSON(w, http.StatusOK, api.CapabilitiesResponse{Identity: target, Capabilities: names})
}

func (s *Server) getLedgerOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.svc.GetLedgerOwner(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OwnerResponse{Owner: owner})
}

func (s *Server) updateLedgerOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.UpdateLedgerOwnerRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.UpdateLedgerOwner(r.Context(), id, r.PathValue("handle"), req.Owner); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OwnerResponse{Owner: req.Owner.Normalize()})
}

func (s *Server) recordData(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req api.RecordDataRequest
	if !decode(w, r, &req) {
		return
	}
	data := req.Data
	if data == "" {
		data = req.CID
	}
	entry, err := s.svc.RecordData(r.Context(), id, r.PathValue("handle"), models.DataCategory(r.PathValue("category")), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		badRequest(w, "invalid data index "+strconv.Quote(r.PathValue("index")))
		return
	}
	entry, err := s.svc.GetData(r.PathValue("handle"), models.DataCategory(r.PathValue("category")), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) getDataCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.DataCounts(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DataCountsResponse{Counts: counts})
}
