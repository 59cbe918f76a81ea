package usecase

import (
	"helpdesk/internal/domain"
	"helpdesk/internal/port"
)

// QueryUseCase runs similarity search on an open store.
type QueryUseCase struct {
	handle            port.StoreHandle
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
}

// NewQueryUseCase creates a new query use case.
func NewQueryUseCase(handle port.StoreHandle, minScoreThreshold float64) *QueryUseCase {
	return &QueryUseCase{
		handle:            handle,
		minScoreThreshold: minScoreThreshold,
	}
}

// Query returns up to topK chunks most similar to the question.
func (u *QueryUseCase) Query(question string, topK int) ([]domain.ScoredDocument, error) {
	results, err := u.handle.Search(question, topK)
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}

	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *QueryUseCase) filterByThreshold(results []domain.ScoredDocument) []domain.ScoredDocument {
	filtered := make([]domain.ScoredDocument, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// QueryResult is a flattened result for CLI output.
type QueryResult struct {
	Title   string  `json:"title,omitempty"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// ToQueryResults converts scored documents for display.
func ToQueryResults(results []domain.ScoredDocument) []QueryResult {
	out := make([]QueryResult, len(results))
	for i, r := range results {
		title, _ := r.Document.Metadata["title"].(string)
		source, _ := r.Document.Metadata["source"].(string)
		out[i] = QueryResult{
			Title:   title,
			Source:  source,
			Score:   r.Score,
			Content: r.Document.Content,
		}
	}
	return out
}
