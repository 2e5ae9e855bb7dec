package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/dto"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	appErrors "github.com/noah-isme/edu-collective-api/pkg/errors"
)

type adminSettingsStore interface {
	List(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

type adminTreasury interface {
	RescueTransfer(ctx context.Context, asset string, to models.Account, amount int64) error
}

type adminJournal interface {
	Insert(ctx context.Context, entry *models.TreasuryEntry) error
}

type adminAuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Bounds on the owner-set proposal voting window.
const (
	minProposalDurationSeconds = int64(1)
	maxProposalDurationSeconds = int64(30 * 24 * 60 * 60)
)

// AdminService covers the two operations reserved for the organization
// owner: tuning the proposal voting window and rescuing stray assets
// out of the treasury.
type AdminService struct {
	settings        adminSettingsStore
	treasury        adminTreasury
	journal         adminJournal
	audit           adminAuditRecorder
	events          eventPublisher
	metrics         *MetricsService
	validator       *validator.Validate
	clock           clock.Clock
	logger          *zap.Logger
	owner           models.Account
	defaultDuration time.Duration
}

// AdminServiceParams groups constructor dependencies.
type AdminServiceParams struct {
	Settings        adminSettingsStore
	Treasury        adminTreasury
	Journal         adminJournal
	Audit           adminAuditRecorder
	Events          eventPublisher
	Metrics         *MetricsService
	Validator       *validator.Validate
	Clock           clock.Clock
	Logger          *zap.Logger
	Owner           models.Account
	DefaultDuration time.Duration
}

// NewAdminService constructs an AdminService.
func NewAdminService(params AdminServiceParams) *AdminService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Clock == nil {
		params.Clock = clock.System{}
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.DefaultDuration <= 0 {
		params.DefaultDuration = 3 * time.Minute
	}
	return &AdminService{
		settings:        params.Settings,
		treasury:        params.Treasury,
		journal:         params.Journal,
		audit:           params.Audit,
		events:          params.Events,
		metrics:         params.Metrics,
		validator:       params.Validator,
		clock:           params.Clock,
		logger:          params.Logger,
		owner:           params.Owner,
		defaultDuration: params.DefaultDuration,
	}
}

// Settings lists the stored organization settings.
func (s *AdminService) Settings(ctx context.Context, actor models.Account) ([]models.Setting, error) {
	if actor != s.owner {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organization owner may read settings")
	}
	settings, err := s.settings.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	return settings, nil
}

// SetProposalDuration stores the voting window applied to proposals
// created from now on. Running proposals keep the window they opened
// with.
func (s *AdminService) SetProposalDuration(ctx context.Context, actor models.Account, seconds int64) (*models.Setting, error) {
	if actor != s.owner {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organization owner may change settings")
	}
	if seconds < minProposalDurationSeconds || seconds > maxProposalDurationSeconds {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal duration must be between 1 second and 30 days")
	}

	previous := ""
	if existing, err := s.settings.Get(ctx, models.SettingProposalDuration); err == nil {
		previous = existing.Value
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read setting")
	}

	updatedBy := string(actor)
	setting := &models.Setting{
		Key:       models.SettingProposalDuration,
		Value:     strconv.FormatInt(seconds, 10),
		Type:      models.SettingTypeInteger,
		UpdatedBy: &updatedBy,
		UpdatedAt: s.clock.Now(),
	}
	if err := s.settings.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store setting")
	}

	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeSettingsUpdated, map[string]any{
		"key":        setting.Key,
		"value":      setting.Value,
		"updated_by": actor,
	}))
	s.emitAudit(ctx, actor, models.AuditActionSettingsUpdate, "settings", &setting.Key, map[string]any{
		"previous": previous,
		"value":    setting.Value,
	})
	return setting, nil
}

// ProposalDuration returns the currently effective voting window,
// falling back to the configured default when the stored value is
// missing or unusable.
func (s *AdminService) ProposalDuration(ctx context.Context) time.Duration {
	setting, err := s.settings.Get(ctx, models.SettingProposalDuration)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to read proposal duration setting", zap.Error(err))
		}
		return s.defaultDuration
	}
	seconds, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil || seconds < minProposalDurationSeconds || seconds > maxProposalDurationSeconds {
		s.logger.Warn("stored proposal duration unusable, using default",
			zap.String("value", setting.Value))
		return s.defaultDuration
	}
	return time.Duration(seconds) * time.Second
}

// RescueFunds moves an arbitrary asset out of the treasury to a named
// recipient. The transfer is asset-explicit and bypasses role voting;
// the transport layer additionally demands the admin key.
func (s *AdminService) RescueFunds(ctx context.Context, actor models.Account, req dto.RescueRequest) (*models.TreasuryEntry, error) {
	if actor != s.owner {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organization owner may rescue funds")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rescue payload")
	}
	if req.Amount <= 0 {
		return nil, appErrors.ErrZeroAmount
	}

	to := models.Account(req.To)
	if err := s.treasury.RescueTransfer(ctx, req.Asset, to, req.Amount); err != nil {
		return nil, err
	}

	entry := &models.TreasuryEntry{
		Direction:    models.EntryDirectionOut,
		Kind:         models.EntryKindRescue,
		Asset:        req.Asset,
		Amount:       req.Amount,
		Counterparty: to,
		CreatedBy:    actor,
		CreatedAt:    s.clock.Now(),
	}
	// The transfer has settled; a journal hiccup must not fail the
	// rescue. The reconcile tool picks up the gap.
	if err := s.journal.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to journal rescue", zap.Error(err))
	}

	s.metrics.RecordPayout(string(models.EntryKindRescue), req.Amount)
	publishEvent(ctx, s.events, s.metrics, events.New(events.TypeTreasuryRescued, map[string]any{
		"asset":      req.Asset,
		"to":         to,
		"amount":     req.Amount,
		"rescued_by": actor,
	}))
	resourceID := string(to)
	s.emitAudit(ctx, actor, models.AuditActionFundsRescue, "treasury", &resourceID, map[string]any{
		"asset":  req.Asset,
		"amount": req.Amount,
	})
	return entry, nil
}

func (s *AdminService) emitAudit(ctx context.Context, actor models.Account, action, resource string, resourceID *string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(detail)
	log := &models.AuditLog{
		Account:    &actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    payload,
		IPAddress:  "system",
		UserAgent:  "admin-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record admin audit", zap.Error(err))
	}
}
