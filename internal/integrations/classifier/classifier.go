// Package classifier is the HTTP client for the external similarity
// classifier. The classifier is a black box: it takes labeled training ids
// and target ids and returns per-feature scores. Its model internals are
// not this engine's business.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"featlab/internal/domain"
	"featlab/internal/httpx"
)

type Client struct {
	BaseURL string
	Token   string
}

func New(baseURL, token string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token}
}

// SortRequest asks for per-class decision margins against labeled training
// examples. Works for both the two-class stages and the three-class cause
// stage; class names are whatever the caller trained with.
type SortRequest struct {
	TrainingLabels map[int]string `json:"training_labels"`
	TargetIDs      []int          `json:"target_ids"`
}

// SortResponse carries one signed margin per class per scored feature;
// higher means more confidently that class. Features absent from the map
// have no score available, which is not the same as zero.
type SortResponse struct {
	PerFeatureScores map[int]map[string]float64 `json:"per_feature_scores"`
}

// ScoreRequest asks for a single quality score per target, trained on
// explicit positive and negative id lists.
type ScoreRequest struct {
	PositiveTrainingIDs []int `json:"positive_training_ids"`
	NegativeTrainingIDs []int `json:"negative_training_ids"`
	TargetIDs           []int `json:"target_ids"`
}

type ScoreResponse struct {
	Scores     map[int]float64 `json:"scores"`
	Histogram  Histogram       `json:"histogram"`
	Statistics Statistics      `json:"statistics"`
}

type Histogram struct {
	BinEdges []float64 `json:"bin_edges"`
	Counts   []int     `json:"counts"`
}

type Statistics struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// SimilaritySort requests decision margins for the target ids. At least one
// training example per class and one target are required; the request is
// rejected locally before calling out otherwise.
func (c *Client) SimilaritySort(ctx context.Context, req SortRequest) (*SortResponse, error) {
	classes := make(map[string]int)
	for _, class := range req.TrainingLabels {
		classes[class]++
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: need training labels in at least 2 classes, got %d", domain.ErrInsufficientTrainingData, len(classes))
	}
	if len(req.TargetIDs) == 0 {
		return nil, fmt.Errorf("%w: no target ids", domain.ErrInsufficientTrainingData)
	}

	start := time.Now()
	var resp SortResponse
	if err := c.post(ctx, "/api/v1/similarity-sort", req, &resp); err != nil {
		return nil, err
	}
	log.Printf("classifier similarity-sort classes=%d training=%d targets=%d scored=%d elapsed=%s",
		len(classes), len(req.TrainingLabels), len(req.TargetIDs), len(resp.PerFeatureScores), time.Since(start).Round(time.Millisecond))
	return &resp, nil
}

// QualityScore requests continuous quality scores for the target ids.
func (c *Client) QualityScore(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	if len(req.PositiveTrainingIDs) == 0 || len(req.NegativeTrainingIDs) == 0 {
		return nil, fmt.Errorf("%w: need at least 1 positive and 1 negative training id", domain.ErrInsufficientTrainingData)
	}
	if len(req.TargetIDs) == 0 {
		return nil, fmt.Errorf("%w: no target ids", domain.ErrInsufficientTrainingData)
	}

	start := time.Now()
	var resp ScoreResponse
	if err := c.post(ctx, "/api/v1/quality-score", req, &resp); err != nil {
		return nil, err
	}
	log.Printf("classifier quality-score pos=%d neg=%d targets=%d scored=%d elapsed=%s",
		len(req.PositiveTrainingIDs), len(req.NegativeTrainingIDs), len(req.TargetIDs), len(resp.Scores), time.Since(start).Round(time.Millisecond))
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrClassifierRequestFailed, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", domain.ErrClassifierRequestFailed, err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: classifier returned %d: %s", domain.ErrClassifierRequestFailed, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: parsing response: %v", domain.ErrClassifierRequestFailed, err)
	}
	return nil
}
