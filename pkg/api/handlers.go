package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/newtron-network/fabricplan/pkg/allocator"
	"github.com/newtron-network/fabricplan/pkg/metrics"
	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/topology"
	"github.com/newtron-network/fabricplan/pkg/util"
	"github.com/newtron-network/fabricplan/pkg/version"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Profiles int    `json:"profiles"`
}

// AllocateRequest selects one of two inputs: a whole fabric spec, or an
// explicit single-class AllocationSpec with the leaf and spine model ids.
type AllocateRequest struct {
	Fabric       *spec.FabricSpec          `json:"fabric,omitempty"`
	Spec         *allocator.AllocationSpec `json:"spec,omitempty"`
	LeafModelID  string                    `json:"leafModelId,omitempty"`
	SpineModelID string                    `json:"spineModelId,omitempty"`
}

// AuditRequest carries a previously returned result to re-check. Exactly
// one of Result (with Spec) or MultiClass must be set.
type AuditRequest struct {
	Result     *allocator.Result           `json:"result,omitempty"`
	Spec       *allocator.AllocationSpec   `json:"spec,omitempty"`
	MultiClass *allocator.MultiClassResult `json:"multiClass,omitempty"`
}

// AuditResponse lists the inconsistencies found.
type AuditResponse struct {
	OK       bool     `json:"ok"`
	Problems []string `json:"problems"`
}

// ExpandRequest lists port descriptors: pattern strings or literal lists.
type ExpandRequest struct {
	Descriptors []spec.PortRangeDescriptor `json:"descriptors"`
}

// ExpandResponse is the ordered, deduplicated port list.
type ExpandResponse struct {
	Ports   []string `json:"ports"`
	Count   int      `json:"count"`
	Compact string   `json:"compact"`
}

// resultStatus is 200 for a clean engine result and 422 when it carries
// issues. The body is the result either way.
func resultStatus(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "healthy",
			Version:  version.Version,
			Profiles: len(s.catalog),
		})
	}
}

func (s *Server) deriveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f spec.FabricSpec
		if err := ParseJSONRequest(r, &f); err != nil {
			WriteErrorFrom(w, r, err)
			return
		}

		start := time.Now()
		t := topology.Derive(&f, s.catalog)
		s.metrics.ObserveDerive(t, time.Since(start))

		GetLogger(r.Context()).WithField("fabric", f.Name).Debugf("derived %d leaves, %d spines, valid=%t",
			t.LeavesNeeded, t.SpinesNeeded, t.IsValid)
		_ = WriteJSON(w, resultStatus(t.IsValid), t)
	}
}

func (s *Server) allocateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AllocateRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorFrom(w, r, err)
			return
		}

		switch {
		case req.Fabric != nil && req.Spec != nil:
			WriteErrorFrom(w, r, fmt.Errorf("fabric and spec are mutually exclusive: %w", util.ErrValidationFailed))

		case req.Fabric != nil:
			spine, err := s.profile("Spine", req.Fabric.SpineModelID)
			if err != nil {
				WriteErrorFrom(w, r, err)
				return
			}
			start := time.Now()
			result := allocator.AllocateFabric(req.Fabric, s.catalog, spine)
			s.metrics.ObserveAllocation(metrics.OpAllocateMulti, result.OverallIssues, time.Since(start))
			_ = WriteJSON(w, resultStatus(result.OK()), result)

		case req.Spec != nil:
			leaf, err := s.profile("Leaf", req.LeafModelID)
			if err != nil {
				WriteErrorFrom(w, r, err)
				return
			}
			spine, err := s.profile("Spine", req.SpineModelID)
			if err != nil {
				WriteErrorFrom(w, r, err)
				return
			}
			start := time.Now()
			result := allocator.Allocate(*req.Spec, leaf, spine)
			s.metrics.ObserveAllocation(metrics.OpAllocate, result.Issues, time.Since(start))
			_ = WriteJSON(w, resultStatus(result.OK()), result)

		default:
			WriteErrorFrom(w, r, fmt.Errorf("one of fabric or spec is required: %w", util.ErrValidationFailed))
		}
	}
}

func (s *Server) auditHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuditRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorFrom(w, r, err)
			return
		}

		start := time.Now()
		var problems []string
		switch {
		case req.MultiClass != nil && req.Result == nil:
			problems = allocator.ValidateMultiClassResult(req.MultiClass)
		case req.Result != nil && req.Spec != nil && req.MultiClass == nil:
			problems = allocator.ValidateResult(req.Result, *req.Spec)
		default:
			WriteErrorFrom(w, r, fmt.Errorf("expected either multiClass, or result with spec: %w", util.ErrValidationFailed))
			return
		}
		s.metrics.ObserveAudit(len(problems), time.Since(start))

		_ = WriteJSON(w, http.StatusOK, AuditResponse{OK: len(problems) == 0, Problems: problems})
	}
}

func (s *Server) expandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExpandRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			WriteErrorFrom(w, r, err)
			return
		}
		ports := spec.ExpandDescriptors(req.Descriptors)
		if ports == nil {
			ports = []string{}
		}
		_ = WriteJSON(w, http.StatusOK, ExpandResponse{
			Ports:   ports,
			Count:   len(ports),
			Compact: util.CompactPorts(ports),
		})
	}
}

func (s *Server) listProfilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles := make([]*spec.SwitchProfile, 0, len(s.catalog))
		for _, id := range s.catalog.ModelIDs() {
			profiles = append(profiles, s.catalog[id])
		}
		_ = WriteJSON(w, http.StatusOK, profiles)
	}
}

func (s *Server) getProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.profile("Switch", r.PathValue("modelId"))
		if err != nil {
			WriteErrorFrom(w, r, err)
			return
		}
		_ = WriteJSON(w, http.StatusOK, p)
	}
}

// profile resolves a model id against the server's catalog.
func (s *Server) profile(role, modelID string) (*spec.SwitchProfile, error) {
	if modelID == "" {
		return nil, fmt.Errorf("%s model id is required: %w", role, util.ErrValidationFailed)
	}
	p, ok := s.catalog.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%s profile not found: %s: %w", role, modelID, util.ErrProfileNotFound)
	}
	return p, nil
}
