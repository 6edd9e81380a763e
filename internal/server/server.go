package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/traceledger/internal/service"
)

const maxBodyBytes = 1 << 20

// Server exposes the service as a JSON API under /v1.
type Server struct {
	svc       *service.Service
	heartbeat time.Duration
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new server for svc.
func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc, heartbeat: 15 * time.Second, closing: make(chan struct{})}
}

// CloseStreams ends every open audit stream. Register it with
// http.Server.RegisterOnShutdown so Shutdown does not wait on them.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// WithHeartbeat sets the keepalive interval of audit streams.
func (s *Server) WithHeartbeat(d time.Duration) *Server {
	if d > 0 {
		s.heartbeat = d
	}
	return s
}

// Handler returns the HTTP handler for the server. Authentication and
// request logging are applied by the caller.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// registry
	mux.HandleFunc("GET /v1/registry/owner", s.getRegistryOwner)
	mux.HandleFunc("POST /v1/registry/owner", s.transferOwnership)
	mux.HandleFunc("GET /v1/organizations", s.listOrganizationCodes)
	mux.HandleFunc("POST /v1/organizations", s.registerOrganization)
	mux.HandleFunc("GET /v1/organizations/{code}", s.getOrganization)
	mux.HandleFunc("PUT /v1/organizations/{code}", s.modifyOrganization)
	mux.HandleFunc("DELETE /v1/organizations/{code}", s.deactivateOrganization)
	mux.HandleFunc("GET /v1/organizations/{code}/id", s.deriveOrganizationID)
	mux.HandleFunc("GET /v1/organizations/{code}/ledgers", s.listLedgers)
	mux.HandleFunc("POST /v1/organizations/{code}/ledgers", s.createLedger)

	// ledgers
	mux.HandleFunc("GET /v1/ledgers/{handle}", s.getLedger)
	mux.HandleFunc("GET /v1/ledgers/{handle}/products", s.listProducts)
	mux.HandleFunc("POST /v1/ledgers/{handle}/products", s.addProduct)
	mux.HandleFunc("GET /v1/ledgers/{handle}/product-ids", s.listProductIDs)
	mux.HandleFunc("GET /v1/ledgers/{handle}/products/{product}", s.getProduct)
	mux.HandleFunc("POST /v1/ledgers/{handle}/products/{product}/deactivate", s.deactivateProduct)
	mux.HandleFunc("POST /v1/ledgers/{handle}/products/{product}/reactivate", s.reactivateProduct)
	mux.HandleFunc("GET /v1/ledgers/{handle}/products/{product}/batches", s.listBatches)
	mux.HandleFunc("GET /v1/ledgers/{handle}/products/{product}/batches/{batch}", s.getBatch)
	mux.HandleFunc("PUT /v1/ledgers/{handle}/products/{product}/batches/{batch}/processes", s.updateProcesses)
	mux.HandleFunc("PUT /v1/ledgers/{handle}/products/{product}/batches/{batch}/status", s.updateStatus)
	mux.HandleFunc("GET /v1/ledgers/{handle}/products/{product}/batches/{batch}/history", s.batchHistory)
	mux.HandleFunc("GET /v1/ledgers/{handle}/roles/{capability}", s.listRoleMembers)
	mux.HandleFunc("POST /v1/ledgers/{handle}/roles/{capability}", s.grantRole)
	mux.HandleFunc("DELETE /v1/ledgers/{handle}/roles/{capability}/{identity}", s.revokeRole)
	mux.HandleFunc("GET /v1/ledgers/{handle}/capabilities/{identity}", s.getCapabilities)
	mux.HandleFunc("GET /v1/ledgers/{handle}/owner", s.getLedgerOwner)
	mux.HandleFunc("PUT /v1/ledgers/{handle}/owner", s.updateLedgerOwner)
	mux.HandleFunc("GET /v1/ledgers/{handle}/data", s.getDataCounts)
	mux.HandleFunc("POST /v1/ledgers/{handle}/data/{category}", s.recordData)
	mux.HandleFunc("GET /v1/ledgers/{handle}/data/{category}/{index}", s.getData)

	// audit
	mux.HandleFunc("GET /v1/audit", s.replayAudit)
	mux.HandleFunc("GET /v1/audit/stream", s.streamAudit)
	mux.HandleFunc("GET /v1/audit/verify", s.verifyAudit)

	log.Debug().Msg("HTTP routes registered")

	return mux
}
