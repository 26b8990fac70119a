package services

import (
	"context"
	"errors"

	"invest-wallet/internal/models"
	"invest-wallet/internal/policy"
	"invest-wallet/internal/repository"
)

// maxChainDepth bounds the walk up the level-1 chain during cycle detection.
const maxChainDepth = 10000

type Ancestor struct {
	ReferrerId int                  `json:"referrer_id"`
	Level      policy.ReferralLevel `json:"level"`
	EdgeId     int                  `json:"referral_id"`
}

type ReferralService struct {
	Store repository.LedgerStore
}

func NewReferralService(store repository.LedgerStore) *ReferralService {
	return &ReferralService{Store: store}
}

// Ancestors returns up to three referrers of userId, nearest first. It stops
// at the first level without a referrer. Missing deeper edges are resolved
// through the previous ancestor's direct referrer.
func (s *ReferralService) Ancestors(ctx context.Context, userId int) ([]Ancestor, error) {
	return resolveAncestors(ctx, s.Store, userId)
}

func resolveAncestors(ctx context.Context, store repository.LedgerStore, userId int) ([]Ancestor, error) {
	edges, err := store.ReferralEdges(ctx, userId)
	if err != nil {
		return nil, err
	}
	byLevel := make(map[int]models.ReferralEdge, len(edges))
	for _, edge := range edges {
		byLevel[edge.Level] = edge
	}

	seen := map[int]bool{userId: true}
	ancestors := make([]Ancestor, 0, len(policy.Levels))
	for _, level := range policy.Levels {
		edge, ok := byLevel[int(level)]
		if !ok && len(ancestors) > 0 {
			edge, ok, err = directReferrer(ctx, store, ancestors[len(ancestors)-1].ReferrerId)
			if err != nil {
				return nil, err
			}
		}
		if !ok || seen[edge.ReferrerId] {
			break
		}
		seen[edge.ReferrerId] = true
		ancestors = append(ancestors, Ancestor{ReferrerId: edge.ReferrerId, Level: level, EdgeId: edge.ID})
	}
	return ancestors, nil
}

func directReferrer(ctx context.Context, store repository.LedgerStore, userId int) (models.ReferralEdge, bool, error) {
	edges, err := store.ReferralEdges(ctx, userId)
	if err != nil {
		return models.ReferralEdge{}, false, err
	}
	for _, edge := range edges {
		if edge.Level == int(policy.LevelOne) {
			return edge, true, nil
		}
	}
	return models.ReferralEdge{}, false, nil
}

// RegisterReferral records referrerId as the direct referrer of referredId and
// materializes the level 2 and 3 edges from the referrer's own chain.
func (s *ReferralService) RegisterReferral(ctx context.Context, referredId, referrerId int) ([]models.ReferralEdge, error) {
	if referredId == referrerId {
		return nil, ErrSelfReferral
	}

	var created []models.ReferralEdge
	err := s.Store.WithTx(ctx, func(tx repository.LedgerStore) error {
		created = nil

		if _, ok, err := directReferrer(ctx, tx, referredId); err != nil {
			return err
		} else if ok {
			return ErrAlreadyReferred
		}

		if err := ensureNoCycle(ctx, tx, referredId, referrerId); err != nil {
			return err
		}

		upline, err := resolveAncestors(ctx, tx, referrerId)
		if err != nil {
			return err
		}

		chain := []int{referrerId}
		for _, a := range upline {
			chain = append(chain, a.ReferrerId)
		}
		for i, ancestorId := range chain {
			if i >= len(policy.Levels) {
				break
			}
			edge := models.ReferralEdge{ReferrerId: ancestorId, ReferredId: referredId, Level: int(policy.Levels[i])}
			if err := tx.InsertReferralEdge(ctx, &edge); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrAlreadyReferred
				}
				return err
			}
			created = append(created, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ensureNoCycle walks the referrer's level-1 chain and fails if it reaches referredId.
func ensureNoCycle(ctx context.Context, store repository.LedgerStore, referredId, referrerId int) error {
	current := referrerId
	for depth := 0; depth < maxChainDepth; depth++ {
		edge, ok, err := directReferrer(ctx, store, current)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if edge.ReferrerId == referredId {
			return ErrReferralCycle
		}
		current = edge.ReferrerId
	}
	return ErrReferralCycle
}

func (s *ReferralService) Earnings(ctx context.Context, userId, page, limit int) ([]models.ReferralEarning, int64, error) {
	return s.Store.ListReferralEarnings(ctx, userId, page, limit)
}

type DownlineDTO struct {
	LevelOne   int64 `json:"level_1"`
	LevelTwo   int64 `json:"level_2"`
	LevelThree int64 `json:"level_3"`
	Total      int64 `json:"total"`
}

func (s *ReferralService) Downline(ctx context.Context, userId int) (DownlineDTO, error) {
	counts, err := s.Store.CountDownline(ctx, userId)
	if err != nil {
		return DownlineDTO{}, err
	}
	d := DownlineDTO{
		LevelOne:   counts[int(policy.LevelOne)],
		LevelTwo:   counts[int(policy.LevelTwo)],
		LevelThree: counts[int(policy.LevelThree)],
	}
	d.Total = d.LevelOne + d.LevelTwo + d.LevelThree
	return d, nil
}
