package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidRule = errors.New("invalid tax rule")

type RuleInput struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Position   int             `json:"position"`
	Active     *bool           `json:"active"`
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service manages tax rules for admins.
type Service struct {
	repo  *Repository
	cache cacheInvalidator
}

func NewService(repo *Repository, cache cacheInvalidator) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) ListActive(ctx context.Context) ([]Rule, error) {
	return s.repo.ActiveRules(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]Rule, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, in RuleInput) (*Rule, error) {
	if err := validateRule(in); err != nil {
		return nil, err
	}
	rule := &Rule{Active: true}
	applyRule(rule, in)
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return rule, nil
}

func (s *Service) Update(ctx context.Context, id uint, in RuleInput) (*Rule, error) {
	if err := validateRule(in); err != nil {
		return nil, err
	}
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyRule(rule, in)
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return rule, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func validateRule(in RuleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if in.Percentage.IsNegative() || in.Percentage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidRule)
	}
	return nil
}

func applyRule(r *Rule, in RuleInput) {
	r.Name = strings.TrimSpace(in.Name)
	r.Percentage = in.Percentage
	r.Position = in.Position
	if in.Active != nil {
		r.Active = *in.Active
	}
}
