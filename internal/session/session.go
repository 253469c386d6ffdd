// Package session drives one labeling session: the live partition tree,
// the per-stage selection ledgers, and the three-stage pipeline that hands
// training/classification splits to the external classifier.
package session

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"featlab/internal/domain"
	"featlab/internal/integrations/classifier"
	"featlab/internal/partition"
	"featlab/internal/selection"
	"featlab/internal/universe"
)

// Config is the engine-facing slice of configuration.
type Config struct {
	Stages                []domain.StageDefinition
	CauseCategories       []string
	Gating                selection.GatingConfig
	ShuffleSeed           int64
	ScoreMetric           string
	DefaultScoreThreshold float64
}

// Classifier is the external scoring service, consumed as a black box.
type Classifier interface {
	SimilaritySort(ctx context.Context, req classifier.SortRequest) (*classifier.SortResponse, error)
	QualityScore(ctx context.Context, req classifier.ScoreRequest) (*classifier.ScoreResponse, error)
}

// Notifier receives stage-commit events. Optional; nil disables it.
type Notifier interface {
	StageCommitted(stage string, summary string)
}

// Session is a single-writer, in-memory labeling session. One user, one
// logical thread of control; the mutex only shields API readers from the
// writer mid-update.
type Session struct {
	cfg        Config
	cache      *universe.Cache
	classifier Classifier
	notifier   Notifier

	mu        sync.Mutex
	uni       *universe.Universe
	tree      *partition.Tree
	stage     domain.Stage
	stores    map[domain.Stage]*selection.Store
	commits   map[domain.Stage]*Commit
	scores    map[int]float64
	scoreCut  float64
	scoreTree *partition.Tree
	lastSort  []RankedFeature
	rng       *rand.Rand
	ops       map[string]*opState
}

func New(cfg Config, cache *universe.Cache, cl Classifier, notifier Notifier) *Session {
	seed := cfg.ShuffleSeed
	if seed == 0 {
		seed = 1
	}
	if cfg.ScoreMetric == "" {
		cfg.ScoreMetric = "quality_score"
	}
	return &Session{
		cfg:        cfg,
		cache:      cache,
		classifier: cl,
		notifier:   notifier,
		stage:      domain.StageStructural,
		stores: map[domain.Stage]*selection.Store{
			domain.StageStructural: selection.NewStore(),
			domain.StageQuality:    selection.NewStore(),
			domain.StageCause:      selection.NewStore(),
		},
		commits:  make(map[domain.Stage]*Commit),
		scoreCut: cfg.DefaultScoreThreshold,
		rng:      rand.New(rand.NewSource(seed)),
		ops:      make(map[string]*opState),
	}
}

// Start loads the universe through the cache and builds the initial tree.
func (s *Session) Start() error {
	u, err := s.cache.Get()
	if err != nil {
		return err
	}

	tree, err := partition.Build(u, s.cfg.Stages, u.IDs())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.uni = u
	s.tree = tree
	s.mu.Unlock()

	log.Printf("session started features=%d stages=%d nodes=%d single_node=%v",
		u.Size(), len(s.cfg.Stages), len(tree.Nodes), tree.SingleNode)
	return nil
}

// Tree returns the live partition tree. The caller must treat it as
// read-only; the session is the only writer.
func (s *Session) Tree() *partition.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Stage returns the active stage.
func (s *Session) Stage() domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Store returns the current snapshot of a stage's ledger. Completed stages
// keep their frozen commit; the live store is still readable for revisits.
func (s *Session) Store(stage domain.Stage) *selection.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[stage]
}

// Commit returns a completed stage's frozen snapshot.
func (s *Session) Commit(stage domain.Stage) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commits[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStageNotCommitted, stage)
	}
	return c, nil
}

// Rebin applies a threshold drag on one node, rebuilding only its subtree.
func (s *Session) Rebin(nodeID string, thresholds []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return fmt.Errorf("session not started")
	}
	return s.tree.Rebin(s.uni, nodeID, thresholds)
}

// SetManual records a user decision for one feature in the active stage.
func (s *Session) SetManual(id int, state domain.State, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stage
	s.stores[st] = s.stores[st].SetManual(selection.FeatureKey(id), state, category)
}

// SetManualPair records a user decision for a feature pair (structural
// split decisions are pairwise).
func (s *Session) SetManualPair(a, b int, state domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stage
	s.stores[st] = s.stores[st].SetManual(domain.PairKey(a, b), state, "")
}

// SetManualBatch bulk-accepts or bulk-rejects a candidate id list.
func (s *Session) SetManualBatch(ids []int, state domain.State, category string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = selection.FeatureKey(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stage
	s.stores[st] = s.stores[st].SetManualBatch(keys, state, category)
}

// ResetStage clears the active stage's ledger.
func (s *Session) ResetStage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[s.stage] = s.stores[s.stage].Clear()
	log.Printf("stage %s ledger reset", s.stage)
}

// InvalidateUniverse drops the cached universe. The session keeps running
// on the already-loaded copy until restarted.
func (s *Session) InvalidateUniverse() {
	s.cache.Invalidate()
}

// nodeCandidates resolves a tree node to its candidate feature ids: the
// union of its children's sets for split nodes, its own set otherwise, the
// whole universe for an empty node id.
func (s *Session) nodeCandidates(nodeID string) ([]int, error) {
	if s.uni == nil {
		return nil, fmt.Errorf("session not started")
	}
	if nodeID == "" {
		return s.uni.IDs().Sorted(), nil
	}
	set, err := s.tree.SegmentFeatures(nodeID)
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

// Counts derives the two-state bucket totals scoped to a node.
func (s *Session) Counts(nodeID string) (selection.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.nodeCandidates(nodeID)
	if err != nil {
		return selection.Counts{}, err
	}
	return selection.CountsFor(s.stores[s.stage], featureKeys(ids)), nil
}

// CauseCounts derives the per-category totals scoped to a node.
func (s *Session) CauseCounts(nodeID string) (selection.CauseCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.nodeCandidates(nodeID)
	if err != nil {
		return selection.CauseCounts{}, err
	}
	return selection.CauseCountsFor(s.stores[s.stage], featureKeys(ids), s.cfg.CauseCategories), nil
}

// Gates are the derived enablement flags for bulk actions on a node.
type Gates struct {
	CanSort    bool `json:"can_sort"`
	CanAutoTag bool `json:"can_auto_tag"`
}

// Gates evaluates the gating predicates for the active stage over a node's
// candidates. Pure function of the derived counts and configuration.
func (s *Session) Gates(nodeID string) (Gates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.nodeCandidates(nodeID)
	if err != nil {
		return Gates{}, err
	}
	keys := featureKeys(ids)
	if s.stage == domain.StageCause {
		c := selection.CauseCountsFor(s.stores[s.stage], keys, s.cfg.CauseCategories)
		return Gates{
			CanSort:    s.cfg.Gating.CanSortByCause(c),
			CanAutoTag: s.cfg.Gating.CanAutoTagCause(c),
		}, nil
	}
	c := selection.CountsFor(s.stores[s.stage], keys)
	return Gates{
		CanSort:    s.cfg.Gating.CanSortBySimilarity(c),
		CanAutoTag: s.cfg.Gating.CanAutoTag(c),
	}, nil
}

func featureKeys(ids []int) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = selection.FeatureKey(id)
	}
	return keys
}
