package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/domain"
	elastic "github.com/elastic/go-elasticsearch/v8"
)

// ScoreRepository indexes scored clients for search
type ScoreRepository struct {
	client *elastic.Client
	index  string
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(cfg config.ElasticsearchConfig) (*ScoreRepository, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Verify connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	res.Body.Close()

	return &ScoreRepository{
		client: client,
		index:  cfg.Index,
	}, nil
}

// IndexScores bulk-indexes every result of a run. Document ids are
// <run_id>:<client_id> so re-indexing a run is idempotent.
func (r *ScoreRepository) IndexScores(ctx context.Context, runID string, output domain.ScoringOutput) error {
	if len(output.Scores) == 0 {
		return nil
	}

	indexedAt := time.Now().UTC()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, result := range output.Scores {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": r.index,
				"_id":    runID + ":" + result.ClientID,
			},
		}
		doc := domain.ScoreDocument{
			RunID:     runID,
			RulesetID: output.Meta.RulesetID,
			IndexedAt: indexedAt,
			Result:    result,
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal score document: %w", err)
		}
	}

	res, err := r.client.Bulk(
		&buf,
		r.client.Bulk.WithContext(ctx),
		r.client.Bulk.WithIndex(r.index),
	)
	if err != nil {
		return fmt.Errorf("failed to index scores: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulk.Errors {
		return fmt.Errorf("elasticsearch bulk request had item failures")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchScores runs a query_string search, newest documents first
func (r *ScoreRepository) SearchScores(ctx context.Context, query string, from, size int) (*domain.ScoreDocumentPage, error) {
	if size <= 0 {
		size = 20
	}
	if query == "" {
		query = "*"
	}

	esQuery := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		},
		"sort": []map[string]interface{}{
			{"indexed_at": "desc"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to perform search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result searchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]domain.ScoreDocument, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc domain.ScoreDocument
		if err := json.Unmarshal(hit.Source, &doc); err == nil {
			docs = append(docs, doc)
		}
	}

	total := result.Hits.Total.Value
	return &domain.ScoreDocumentPage{
		Documents:  docs,
		TotalCount: total,
		Page:       from/size + 1,
		PageSize:   size,
		HasMore:    total > int64(from+size),
	}, nil
}
