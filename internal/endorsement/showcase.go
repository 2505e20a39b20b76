package endorsement

import (
	"context"
	"fmt"

	"github.com/nesafrica/endorse/internal/model"
	"github.com/nesafrica/endorse/internal/repository"
)

const (
	defaultShowcaseLimit = 12
	maxShowcaseLimit     = 100
)

// ShowcaseQuery は公開ショーケースの検索条件。
type ShowcaseQuery struct {
	Category string
	Country  string
	// Featuredがnilの場合は注目表示の有無で絞り込まない。
	Featured *bool
	Limit    int
	Offset   int
}

// ShowcasePage はショーケースの1ページ分の結果。
type ShowcasePage struct {
	Items      []*model.Endorsement
	Total      int
	Limit      int
	Offset     int
	HasMore    bool
	Categories []string
	Countries  []string
}

// Showcase は公開ショーケースを返す。
// 表示対象はapprovedかつverifiedのレコードのみで、他の状態は
// フィルタ条件に関わらず決して含まれない。
func (s *Service) Showcase(ctx context.Context, q ShowcaseQuery) (*ShowcasePage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultShowcaseLimit
	}
	if q.Limit > maxShowcaseLimit {
		q.Limit = maxShowcaseLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	filter := repository.ShowcaseFilter{
		Category: q.Category,
		Country:  q.Country,
		Featured: q.Featured,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}

	items, err := s.repo.ListShowcase(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list showcase: %w", err)
	}

	total, err := s.repo.CountShowcase(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count showcase: %w", err)
	}

	categories, countries, err := s.repo.ShowcaseFacets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load showcase facets: %w", err)
	}

	return &ShowcasePage{
		Items:      items,
		Total:      total,
		Limit:      q.Limit,
		Offset:     q.Offset,
		HasMore:    q.Offset+q.Limit < total,
		Categories: categories,
		Countries:  countries,
	}, nil
}

// AdminList は管理画面向けの一覧を返す。statusが空の場合は全件。
func (s *Service) AdminList(ctx context.Context, status string) ([]*model.Endorsement, error) {
	var filter *model.Status
	if status != "" {
		st := model.Status(status)
		if !st.Valid() {
			return nil, model.NewValidationError("Invalid status filter")
		}
		filter = &st
	}

	items, err := s.repo.ListByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list endorsements: %w", err)
	}

	return items, nil
}

// DashboardCounts は管理ダッシュボードの集計値。
// 各カウントは独立に集計したもので、合算しても厳密な不変条件は持たない。
type DashboardCounts struct {
	Total               int `json:"total"`
	PendingVerification int `json:"pending_verification"`
	PendingReview       int `json:"pending_review"`
	Approved            int `json:"approved"`
	Rejected            int `json:"rejected"`
	Featured            int `json:"featured"`
}

// Dashboard は管理ダッシュボードの集計を返す。
func (s *Service) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	counts := &DashboardCounts{}

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count endorsements: %w", err)
	}
	counts.Total = total

	for _, st := range model.AllStatuses() {
		n, err := s.repo.CountByStatus(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("failed to count endorsements by status: %w", err)
		}
		switch st {
		case model.StatusPendingVerification:
			counts.PendingVerification = n
		case model.StatusPendingReview:
			counts.PendingReview = n
		case model.StatusApproved:
			counts.Approved = n
		case model.StatusRejected:
			counts.Rejected = n
		}
	}

	featured, err := s.repo.CountFeatured(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count featured endorsements: %w", err)
	}
	counts.Featured = featured

	return counts, nil
}
