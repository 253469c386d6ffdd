// Package api exposes the labeling session to the presentation layer as a
// JSON HTTP surface. The engine stays transport-agnostic; this package
// only translates requests, calls the session, and maps the error
// taxonomy onto status codes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"featlab/internal/config"
	"featlab/internal/domain"
	"featlab/internal/integrations/suggest"
	"featlab/internal/scorestats"
	"featlab/internal/session"
	"featlab/internal/universe"
)

type Server struct {
	cfg   config.Config
	sess  *session.Session
	cache *universe.Cache
}

func NewServer(cfg config.Config, sess *session.Session, cache *universe.Cache) *Server {
	return &Server{cfg: cfg, sess: sess, cache: cache}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tree", s.handleTree)
		r.Post("/tree/thresholds", s.handleRebin)
		r.Get("/counts", s.handleCounts)
		r.Post("/selection/manual", s.handleManual)
		r.Post("/selection/bulk", s.handleBulk)
		r.Post("/selection/reset", s.handleReset)
		r.Post("/classify/sort", s.handleSort)
		r.Post("/classify/autotag", s.handleAutoTag)
		r.Get("/stage", s.handleStage)
		r.Post("/stage/threshold", s.handleScoreThreshold)
		r.Post("/stage/advance", s.handleAdvance)
		r.Post("/universe/invalidate", s.handleInvalidate)
		r.Get("/suggest", s.handleSuggest)
	})
	return r
}

type treeNode struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id,omitempty"`
	Metric       string    `json:"metric,omitempty"`
	Thresholds   []float64 `json:"thresholds,omitempty"`
	Depth        int       `json:"depth"`
	BinIndex     int       `json:"bin_index"`
	RangeLabel   string    `json:"range_label"`
	Children     []string  `json:"children,omitempty"`
	FeatureCount int       `json:"feature_count"`
}

type treeResponse struct {
	Nodes       []treeNode `json:"nodes"`
	SingleNode  bool       `json:"single_node"`
	TruncatedAt int        `json:"truncated_at"`
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree := s.sess.Tree()
	if tree == nil {
		writeError(w, fmt.Errorf("session not started"))
		return
	}

	resp := treeResponse{SingleNode: tree.SingleNode, TruncatedAt: tree.TruncatedAt}
	// Walk depth-first from the root so the order is deterministic.
	var walk func(id string)
	walk = func(id string) {
		n := tree.Nodes[id]
		resp.Nodes = append(resp.Nodes, treeNode{
			ID:           n.ID,
			ParentID:     n.ParentID,
			Metric:       n.Metric,
			Thresholds:   n.Thresholds,
			Depth:        n.Depth,
			BinIndex:     n.BinIndex,
			RangeLabel:   n.RangeLabel,
			Children:     n.Children,
			FeatureCount: n.FeatureCount(),
		})
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	walk(tree.Root.ID)
	writeJSON(w, resp)
}

// handleRebin takes the node id in the body rather than the path: node ids
// embed the bin path ("root/s0b1/s1b0"), so they cannot be a path segment.
func (s *Server) handleRebin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Node       string    `json:"node"`
		Thresholds []float64 `json:"thresholds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Node == "" {
		http.Error(w, "node is required", http.StatusBadRequest)
		return
	}
	if err := s.sess.Rebin(req.Node, req.Thresholds); err != nil {
		writeError(w, err)
		return
	}
	s.handleTree(w, r)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("node")
	gates, err := s.sess.Gates(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.sess.Stage() == domain.StageCause {
		counts, err := s.sess.CauseCounts(nodeID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"stage": s.sess.Stage().String(), "cause_counts": counts, "gates": gates})
		return
	}
	counts, err := s.sess.Counts(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"stage": s.sess.Stage().String(), "counts": counts, "gates": gates})
}

type manualRequest struct {
	ID       *int   `json:"id"`
	Pair     []int  `json:"pair"`
	State    string `json:"state"`
	Category string `json:"category"`
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	state, err := parseState(req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case len(req.Pair) == 2:
		s.sess.SetManualPair(req.Pair[0], req.Pair[1], state)
	case req.ID != nil:
		s.sess.SetManual(*req.ID, state, req.Category)
	default:
		http.Error(w, "either id or pair is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs      []int  `json:"ids"`
		State    string `json:"state"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	state, err := parseState(req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sess.SetManualBatch(req.IDs, state, req.Category)
	writeJSON(w, map[string]any{"status": "ok", "updated": len(req.IDs)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sess.ResetStage()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Node string `json:"node"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	ranked, err := s.sess.SortBySimilarity(r.Context(), req.Node)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ranked": ranked})
}

func (s *Server) handleAutoTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Node string `json:"node"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	tagged, err := s.sess.AutoTag(r.Context(), req.Node)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"tagged": tagged})
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	scores := s.sess.Scores()
	resp := map[string]any{
		"stage":           s.sess.Stage().String(),
		"score_threshold": s.sess.ScoreThreshold(),
	}
	if len(scores) > 0 {
		edges, counts := scorestats.Histogram(scores, 20)
		resp["score_stats"] = scorestats.Summarize(scores)
		resp["score_histogram"] = map[string]any{"bin_edges": edges, "counts": counts}
	}
	writeJSON(w, resp)
}

func (s *Server) handleScoreThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.sess.SetScoreThreshold(req.Value); err != nil {
		writeError(w, err)
		return
	}
	s.handleStage(w, r)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	commit, err := s.sess.AdvanceStage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"committed": commit.Stage.String(),
		"stage":     s.sess.Stage().String(),
		"summary":   commit.Summary(),
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.sess.InvalidateUniverse()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("node")
	if nodeID == "" {
		nodeID = "root"
	}
	tree := s.sess.Tree()
	if tree == nil {
		writeError(w, fmt.Errorf("session not started"))
		return
	}
	node, err := tree.Node(nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := s.cache.Get()
	if err != nil {
		writeError(w, err)
		return
	}

	var features []domain.Feature
	for _, id := range node.Features.Sorted() {
		if f, ok := u.Feature(id); ok {
			features = append(features, f)
		}
	}

	suggestion, err := suggest.DraftLabel(r.Context(), s.cfg.AnthropicAPIKey, s.cfg.SuggestModel,
		node.RangeLabel, features, s.cfg.CauseCategories)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, suggestion)
}

func parseState(raw string) (domain.State, error) {
	switch raw {
	case "selected":
		return domain.Selected, nil
	case "rejected":
		return domain.Rejected, nil
	case "categorized":
		return domain.Categorized, nil
	case "unset", "":
		return domain.Unset, nil
	}
	return domain.Unset, fmt.Errorf("unknown state %q", raw)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api encode error: %v", err)
	}
}

// writeError maps the engine's error taxonomy to HTTP statuses: stale node
// ids are 404 (a normal condition after a rebin), bad thresholds 400, gate
// and ordering failures 409 (the action is disabled, not broken), and
// classifier failures 502 so the UI can show a transient upstream banner.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidThresholdOrder):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientTrainingData):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrClassifierRequestFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrStageNotCommitted):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
