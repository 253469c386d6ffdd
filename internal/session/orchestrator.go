package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"featlab/internal/domain"
	"featlab/internal/integrations/classifier"
	"featlab/internal/partition"
	"featlab/internal/selection"
)

// Class names sent to the classifier for the two-state stages.
const (
	classSelected = "selected"
	classRejected = "rejected"
)

// AdvanceStage finalizes the active stage into an immutable commit and
// moves the pipeline forward. At the structural→quality boundary it also
// assembles the training/classification split, calls the quality scorer,
// and seeds the quality ledger from the returned scores. Nothing is
// committed if the classifier call fails.
func (s *Session) AdvanceStage(ctx context.Context) (*Commit, error) {
	seq, err := s.beginOp("advance", "")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	stage := s.stage
	commit := s.buildCommitLocked(stage)
	s.mu.Unlock()

	switch stage {
	case domain.StageStructural:
		if err := s.enterQuality(ctx, commit); err != nil {
			s.finishOp("advance", seq, "", false)
			return nil, err
		}
	case domain.StageQuality:
		s.mu.Lock()
		s.commits[stage] = commit
		s.stage = domain.StageCause
		s.mu.Unlock()
	case domain.StageCause:
		s.mu.Lock()
		s.commits[stage] = commit
		s.mu.Unlock()
	}

	s.finishOp("advance", seq, "", true)
	log.Printf("stage committed %s", commit.Summary())
	if s.notifier != nil {
		s.notifier.StageCommitted(stage.String(), commit.Summary())
	}
	return commit, nil
}

// buildCommitLocked freezes the active stage. Caller holds s.mu.
func (s *Session) buildCommitLocked(stage domain.Stage) *Commit {
	return &Commit{
		Stage:       stage,
		Features:    s.stageFeaturesLocked(stage),
		Entries:     s.stores[stage].Snapshot(),
		CommittedAt: time.Now(),
	}
}

// stageFeaturesLocked is the candidate feature set of a stage: the full
// filtered universe for the structural and quality passes, and the quality
// commit's rejected (below-threshold) bucket for the cause pass.
func (s *Session) stageFeaturesLocked(stage domain.Stage) domain.FeatureSet {
	if stage == domain.StageCause {
		if qc, ok := s.commits[domain.StageQuality]; ok {
			return domain.NewFeatureSet(qc.SelectedIDs(domain.Rejected, domain.SourceNone)...)
		}
	}
	if s.uni == nil {
		return domain.NewFeatureSet()
	}
	return s.uni.IDs()
}

// enterQuality runs the structural→quality transition: training split,
// quality-score call, score registration and the default threshold cut.
func (s *Session) enterQuality(ctx context.Context, structural *Commit) error {
	pos, neg, targets, err := s.trainingSplit(structural)
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		// Everything was hand-labeled; nothing to classify.
		log.Printf("stage %s advanced without classification: no untagged features", domain.StageStructural)
		s.mu.Lock()
		s.commits[domain.StageStructural] = structural
		s.stage = domain.StageQuality
		s.mu.Unlock()
		return nil
	}

	resp, err := s.classifier.QualityScore(ctx, classifier.ScoreRequest{
		PositiveTrainingIDs: pos,
		NegativeTrainingIDs: neg,
		TargetIDs:           targets,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[domain.StageStructural] = structural
	s.stage = domain.StageQuality
	s.scores = resp.Scores
	s.uni.SetColumn(s.cfg.ScoreMetric, resp.Scores)
	s.scoreCut = s.cfg.DefaultScoreThreshold

	scored := make(domain.FeatureSet, len(s.scores))
	for id := range s.scores {
		scored.Add(id)
	}
	scoreTree, err := partition.Build(s.uni, []domain.StageDefinition{
		{Metric: s.cfg.ScoreMetric, Thresholds: []float64{s.scoreCut}},
	}, scored)
	if err != nil {
		return err
	}
	s.scoreTree = scoreTree
	return s.applyScoreCutLocked()
}

// trainingSplit assembles the classifier input from a structural commit:
// manual labels when the analyst made any, otherwise the skip-mode
// fallback, where the default (selected) bucket is deterministically
// shuffled and split 50/50 into the two training classes.
func (s *Session) trainingSplit(c *Commit) (pos, neg, targets []int, err error) {
	pos = c.SelectedIDs(domain.Selected, domain.SourceManual)
	neg = c.SelectedIDs(domain.Rejected, domain.SourceManual)

	if len(pos) == 0 && len(neg) == 0 {
		def := c.SelectedIDs(domain.Selected, domain.SourceNone)
		if len(def) < 2 {
			return nil, nil, nil, fmt.Errorf("%w: skip-mode fallback needs at least 2 default-bucket features, got %d",
				domain.ErrInsufficientTrainingData, len(def))
		}
		shuffled := append([]int(nil), def...)
		s.rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		half := len(shuffled) / 2
		pos = shuffled[:half]
		neg = shuffled[half:]

		targets = c.Features.Minus(domain.NewFeatureSet(def...)).Sorted()
		log.Printf("skip-mode fallback: default_bucket=%d pos=%d neg=%d targets=%d", len(def), len(pos), len(neg), len(targets))
		return pos, neg, targets, nil
	}

	if len(pos) == 0 || len(neg) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: need manual labels on both paths, selected=%d rejected=%d",
			domain.ErrInsufficientTrainingData, len(pos), len(neg))
	}

	labeled := domain.NewFeatureSet(pos...)
	for _, id := range neg {
		labeled.Add(id)
	}
	targets = c.Features.Minus(labeled).Sorted()
	return pos, neg, targets, nil
}

// SetScoreThreshold moves the quality-score cut. The scored set is re-split
// through the partition rebin contract against a synthetic single-metric
// node, and the resulting buckets are re-applied as automatic labels.
// Manual entries are untouched. Idempotent for a repeated value.
func (s *Session) SetScoreThreshold(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scoreTree == nil {
		return fmt.Errorf("no quality scores available")
	}
	s.scoreCut = v
	return s.applyScoreCutLocked()
}

// applyScoreCutLocked re-splits the synthetic score tree at the current cut
// and merges the two buckets into the quality ledger as automatic labels.
func (s *Session) applyScoreCutLocked() error {
	if err := s.scoreTree.Rebin(s.uni, "root", []float64{s.scoreCut}); err != nil {
		return err
	}

	decisions := make(map[string]domain.Entry, len(s.scores))
	for _, child := range s.scoreTree.Root.Children {
		node := s.scoreTree.Nodes[child]
		state := domain.Rejected
		if node.BinIndex == 1 {
			state = domain.Selected
		}
		for id := range node.Features {
			decisions[selection.FeatureKey(id)] = domain.Entry{State: state}
		}
	}
	s.stores[domain.StageQuality] = s.stores[domain.StageQuality].ApplyAutomaticBatch(decisions)
	log.Printf("score threshold applied cut=%.4f scored=%d", s.scoreCut, len(s.scores))
	return nil
}

// ScoreThreshold returns the current quality-score cut.
func (s *Session) ScoreThreshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreCut
}

// Scores returns a copy of the last quality-score map.
func (s *Session) Scores() map[int]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]float64, len(s.scores))
	for id, v := range s.scores {
		out[id] = v
	}
	return out
}

// RankedFeature is one similarity-sort result: the best-scoring class and
// its decision margin. Features the classifier returned no score for are
// absent, not ranked at zero.
type RankedFeature struct {
	ID     int     `json:"id"`
	Class  string  `json:"class"`
	Margin float64 `json:"margin"`
}

// SortBySimilarity ranks a node's untagged candidates by similarity to the
// manual labels, most-confident first. Results of a superseded request are
// discarded; a repeat of the last identical request is served from the
// memoized result without calling out.
func (s *Session) SortBySimilarity(ctx context.Context, nodeID string) ([]RankedFeature, error) {
	labels, targets, err := s.sortInput(nodeID)
	if err != nil {
		return nil, err
	}

	sig := idSignature("sort:"+nodeID, targets)
	seq, err := s.beginOp("sort", sig)
	if err == errDuplicateRequest {
		s.mu.Lock()
		cached := s.lastSort
		s.mu.Unlock()
		return cached, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := s.classifier.SimilaritySort(ctx, classifier.SortRequest{
		TrainingLabels: labels,
		TargetIDs:      targets,
	})
	if err != nil {
		s.finishOp("sort", seq, "", false)
		return nil, err
	}

	ranked := rankByMargin(resp.PerFeatureScores)
	if !s.finishOp("sort", seq, sig, true) {
		return nil, fmt.Errorf("similarity sort superseded by a newer request")
	}

	s.mu.Lock()
	s.lastSort = ranked
	s.mu.Unlock()
	return ranked, nil
}

// sortInput gathers training labels and targets for a similarity request
// over a node's candidates, enforcing the stage's sort gate.
func (s *Session) sortInput(nodeID string) (map[int]string, []int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.nodeCandidates(nodeID)
	if err != nil {
		return nil, nil, err
	}

	store := s.stores[s.stage]
	labels := make(map[int]string)
	var targets []int
	for _, id := range ids {
		e := store.Get(selection.FeatureKey(id))
		if e.Source == domain.SourceManual {
			switch {
			case e.State == domain.Selected:
				labels[id] = classSelected
				continue
			case e.State == domain.Rejected:
				labels[id] = classRejected
				continue
			case e.State == domain.Categorized:
				labels[id] = e.Category
				continue
			}
		}
		targets = append(targets, id)
	}

	if s.stage == domain.StageCause {
		c := selection.CauseCountsFor(store, featureKeys(ids), s.cfg.CauseCategories)
		if !s.cfg.Gating.CanSortByCause(c) {
			return nil, nil, fmt.Errorf("%w: cause sort needs every category labeled", domain.ErrInsufficientTrainingData)
		}
	} else {
		c := selection.CountsFor(store, featureKeys(ids))
		if !s.cfg.Gating.CanSortBySimilarity(c) {
			return nil, nil, fmt.Errorf("%w: sort needs manual labels on both paths", domain.ErrInsufficientTrainingData)
		}
	}
	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("%w: no untagged candidates to sort", domain.ErrInsufficientTrainingData)
	}
	return labels, targets, nil
}

// rankByMargin orders scored features by their best class margin,
// descending, with id as the deterministic tie-break.
func rankByMargin(scores map[int]map[string]float64) []RankedFeature {
	out := make([]RankedFeature, 0, len(scores))
	for id, perClass := range scores {
		best := RankedFeature{ID: id}
		first := true
		for class, margin := range perClass {
			if first || margin > best.Margin || (margin == best.Margin && class < best.Class) {
				best.Class = class
				best.Margin = margin
				first = false
			}
		}
		if !first {
			out = append(out, best)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Margin != out[j].Margin {
			return out[i].Margin > out[j].Margin
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AutoTag classifies a node's untagged candidates and merges the predicted
// classes into the active ledger as automatic labels. Manual entries are
// never overwritten. Returns the number of features tagged.
func (s *Session) AutoTag(ctx context.Context, nodeID string) (int, error) {
	labels, targets, err := s.sortInput(nodeID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	stage := s.stage
	store := s.stores[stage]
	var gateErr error
	if stage == domain.StageCause {
		c := selection.CauseCountsFor(store, keysOf(labels, targets), s.cfg.CauseCategories)
		if !s.cfg.Gating.CanAutoTagCause(c) {
			gateErr = fmt.Errorf("%w: not enough manual labels per category to auto-tag", domain.ErrInsufficientTrainingData)
		}
	} else {
		c := selection.CountsFor(store, keysOf(labels, targets))
		if !s.cfg.Gating.CanAutoTag(c) {
			gateErr = fmt.Errorf("%w: not enough manual labels per class to auto-tag", domain.ErrInsufficientTrainingData)
		}
	}
	s.mu.Unlock()
	if gateErr != nil {
		return 0, gateErr
	}

	seq, err := s.beginOp("autotag", "")
	if err != nil {
		return 0, err
	}

	resp, err := s.classifier.SimilaritySort(ctx, classifier.SortRequest{
		TrainingLabels: labels,
		TargetIDs:      targets,
	})
	if err != nil {
		s.finishOp("autotag", seq, "", false)
		return 0, err
	}
	if !s.finishOp("autotag", seq, "", true) {
		return 0, fmt.Errorf("auto-tag superseded by a newer request")
	}

	decisions := make(map[string]domain.Entry, len(resp.PerFeatureScores))
	for _, r := range rankByMargin(resp.PerFeatureScores) {
		var e domain.Entry
		switch r.Class {
		case classSelected:
			e = domain.Entry{State: domain.Selected}
		case classRejected:
			e = domain.Entry{State: domain.Rejected}
		default:
			e = domain.Entry{State: domain.Categorized, Category: r.Class}
		}
		decisions[selection.FeatureKey(r.ID)] = e
	}

	s.mu.Lock()
	s.stores[stage] = s.stores[stage].ApplyAutomaticBatch(decisions)
	s.mu.Unlock()
	log.Printf("auto-tag stage=%s node=%s tagged=%d", stage, nodeID, len(decisions))
	return len(decisions), nil
}

func keysOf(labels map[int]string, targets []int) []string {
	keys := make([]string, 0, len(labels)+len(targets))
	for id := range labels {
		keys = append(keys, selection.FeatureKey(id))
	}
	for _, id := range targets {
		keys = append(keys, selection.FeatureKey(id))
	}
	return keys
}
