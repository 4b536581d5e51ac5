package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
	"github.com/sa3tha/sa3tha_backend/services"
)

// Follow-up rules. They are fixed, not configurable.
const (
	ExpertCheckAge     = 15 * time.Minute
	ReviewRequestDelay = 24 * time.Hour
	StaleAuditAge      = 15 * time.Minute
	SuggestionWindow   = 24 * time.Hour
	SuggestionCooldown = time.Hour

	scanBatchSize = 500
)

const (
	PassExpertCheck   = "expert_check"
	PassReviewRequest = "review_request"
	PassStaleAudit    = "stale_audit"
	PassSuggestions   = "expert_suggestions"
)

// PassResult summarises one scan
type PassResult struct {
	Scanned    int
	Dispatched int
	Failed     int
}

// Passes holds the scan-and-dispatch functions. Each processes its items one
// by one; a failing item is logged and the scan moves on.
type Passes struct {
	contacts   services.ContactStore
	users      services.UserStore
	catalog    services.CatalogStore
	dispatcher *services.NotificationDispatcher
	matcher    *services.ExpertMatcher
	logger     *zap.Logger
	Now        func() time.Time
}

func NewPasses(
	contacts services.ContactStore,
	users services.UserStore,
	catalog services.CatalogStore,
	dispatcher *services.NotificationDispatcher,
	matcher *services.ExpertMatcher,
	logger *zap.Logger,
) *Passes {
	return &Passes{
		contacts:   contacts,
		users:      users,
		catalog:    catalog,
		dispatcher: dispatcher,
		matcher:    matcher,
		logger:     logger,
		Now:        time.Now,
	}
}

// ExpertCheck prompts the expert of every initiated contact that is at least
// ExpertCheckAge old and has not been prompted yet
func (p *Passes) ExpertCheck(ctx context.Context) (PassResult, error) {
	now := p.Now()
	due, err := p.contacts.FindDueExpertChecks(ctx, now.Add(-ExpertCheckAge), scanBatchSize)
	if err != nil {
		return PassResult{}, fmt.Errorf("find due expert checks: %w", err)
	}

	res := PassResult{Scanned: len(due)}
	for i := range due {
		sent, err := p.expertCheck(ctx, &due[i], now)
		if err != nil {
			res.Failed++
			p.logger.Error("expert check failed",
				zap.String("pass", PassExpertCheck),
				zap.String("contact_id", due[i].ID.Hex()),
				zap.Error(err))
			continue
		}
		if sent {
			res.Dispatched++
		}
	}
	return res, nil
}

func (p *Passes) expertCheck(ctx context.Context, contact *models.ContactRequest, now time.Time) (bool, error) {
	expert, err := p.users.FindByID(ctx, contact.ExpertID)
	if err != nil {
		return false, fmt.Errorf("load expert: %w", err)
	}
	msg, err := services.ExpertFollowupMessage(contact, p.userName(ctx, contact.CustomerID))
	if err != nil {
		return false, err
	}

	// stamp before sending: a second tick or poller loses the claim
	claimed, err := p.contacts.ClaimExpertCheck(ctx, contact.ID, now)
	if err != nil {
		return false, fmt.Errorf("claim expert check: %w", err)
	}
	if !claimed {
		return false, nil
	}

	n, err := p.dispatcher.Record(ctx, msg)
	if err != nil {
		if rerr := p.contacts.ReleaseExpertCheck(ctx, contact.ID, now); rerr != nil {
			p.logger.Error("failed to release expert check",
				zap.String("contact_id", contact.ID.Hex()),
				zap.Error(rerr))
		}
		return false, err
	}
	p.dispatcher.Deliver(ctx, n, expert.FCMToken)
	return true, nil
}

// ReviewRequest asks the customer of every contact confirmed more than
// ReviewRequestDelay ago to rate the expert, once
func (p *Passes) ReviewRequest(ctx context.Context) (PassResult, error) {
	now := p.Now()
	due, err := p.contacts.FindDueReviewRequests(ctx, now.Add(-ReviewRequestDelay), scanBatchSize)
	if err != nil {
		return PassResult{}, fmt.Errorf("find due review requests: %w", err)
	}

	res := PassResult{Scanned: len(due)}
	for i := range due {
		sent, err := p.reviewRequest(ctx, &due[i])
		if err != nil {
			res.Failed++
			p.logger.Error("review request failed",
				zap.String("pass", PassReviewRequest),
				zap.String("contact_id", due[i].ID.Hex()),
				zap.Error(err))
			continue
		}
		if sent {
			res.Dispatched++
		}
	}
	return res, nil
}

func (p *Passes) reviewRequest(ctx context.Context, contact *models.ContactRequest) (bool, error) {
	customer, err := p.users.FindByID(ctx, contact.CustomerID)
	if err != nil {
		return false, fmt.Errorf("load customer: %w", err)
	}
	msg, err := services.ReviewRequestMessage(contact, p.userName(ctx, contact.ExpertID))
	if err != nil {
		return false, err
	}

	claimed, err := p.contacts.ClaimReviewRequest(ctx, contact.ID)
	if err != nil {
		return false, fmt.Errorf("claim review request: %w", err)
	}
	if !claimed {
		return false, nil
	}

	n, err := p.dispatcher.Record(ctx, msg)
	if err != nil {
		if rerr := p.contacts.ReleaseReviewRequest(ctx, contact.ID); rerr != nil {
			p.logger.Error("failed to release review request",
				zap.String("contact_id", contact.ID.Hex()),
				zap.Error(rerr))
		}
		return false, err
	}
	p.dispatcher.Deliver(ctx, n, customer.FCMToken)
	return true, nil
}

// StaleAudit logs initiated contacts older than StaleAuditAge. It writes nothing.
func (p *Passes) StaleAudit(ctx context.Context) (PassResult, error) {
	now := p.Now()
	stale, err := p.contacts.FindStaleInitiated(ctx, now.Add(-StaleAuditAge))
	if err != nil {
		return PassResult{}, fmt.Errorf("find stale contacts: %w", err)
	}

	for _, c := range stale {
		p.logger.Info("contact still initiated",
			zap.String("pass", PassStaleAudit),
			zap.String("contact_id", c.ID.Hex()),
			zap.Duration("age", now.Sub(c.CreatedAt)),
			zap.Bool("expert_prompted", c.ExpertCheckSentAt != nil),
			zap.String("expert_answer", c.ExpertAnswer().String()))
	}
	return PassResult{Scanned: len(stale)}, nil
}

// Suggestions sends each recently-searching user the top experts for their
// last search, at most once per SuggestionCooldown. Searches older than
// SuggestionWindow are cleared instead.
func (p *Passes) Suggestions(ctx context.Context) (PassResult, error) {
	now := p.Now()
	candidates, err := p.users.FindSuggestionCandidates(ctx, now.Add(-SuggestionCooldown))
	if err != nil {
		return PassResult{}, fmt.Errorf("find suggestion candidates: %w", err)
	}

	res := PassResult{Scanned: len(candidates)}
	for i := range candidates {
		sent, err := p.suggest(ctx, &candidates[i], now)
		if err != nil {
			res.Failed++
			p.logger.Error("expert suggestion failed",
				zap.String("pass", PassSuggestions),
				zap.String("user_id", candidates[i].ID.Hex()),
				zap.Error(err))
			continue
		}
		if sent {
			res.Dispatched++
		}
	}
	return res, nil
}

func (p *Passes) suggest(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	if user.LastSearch == nil {
		return false, nil
	}
	if now.Sub(user.LastSearch.Timestamp) > SuggestionWindow {
		return false, p.users.ClearLastSearch(ctx, user.ID)
	}

	experts, err := p.matcher.Suggest(ctx, user)
	if err != nil {
		return false, err
	}
	if len(experts) == 0 {
		return false, nil
	}

	service, serviceName, err := p.searchedService(ctx, user.LastSearch)
	if err != nil {
		p.logger.Warn("searched service lookup failed, using generic name",
			zap.String("pass", PassSuggestions),
			zap.String("user_id", user.ID.Hex()),
			zap.Error(err))
		service, serviceName = nil, fallbackServiceName
	}

	ids := make([]string, 0, len(experts))
	for _, e := range experts {
		ids = append(ids, e.ID.Hex())
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}

	msg, err := services.SuggestionsMessage(user, service, serviceName, string(encoded), len(experts))
	if err != nil {
		return false, err
	}
	if _, err := p.dispatcher.Dispatch(ctx, msg); err != nil {
		return false, err
	}
	if err := p.users.MarkSuggestionSent(ctx, user.ID, now); err != nil {
		return true, fmt.Errorf("stamp suggestion: %w", err)
	}
	return true, nil
}

// searchedService returns the parent service (for its icon) and the name
// shown in the suggestion body
// shown when the searched catalog entry is gone
const fallbackServiceName = "الخدمة المطلوبة"

func (p *Passes) searchedService(ctx context.Context, search *models.LastSearch) (*models.Service, string, error) {
	if search.SubService != nil {
		sub, err := p.catalog.FindSubService(ctx, *search.SubService)
		if err != nil {
			return nil, "", fmt.Errorf("load sub-service: %w", err)
		}
		service, err := p.catalog.FindService(ctx, sub.ServiceID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, "", fmt.Errorf("load service: %w", err)
		}
		return service, sub.DisplayName(), nil
	}
	if search.Service != nil {
		service, err := p.catalog.FindService(ctx, *search.Service)
		if err != nil {
			return nil, "", fmt.Errorf("load service: %w", err)
		}
		return service, service.Name, nil
	}
	return nil, "", errors.New("last search has no service")
}

func (p *Passes) userName(ctx context.Context, id primitive.ObjectID) string {
	u, err := p.users.FindByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Name
}
