// Package wallet ведёт кошельки авторов вопросов и заявки на вывод средств.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/metrics"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Repository определяет методы хранилища кошельков.
type Repository interface {
	// GetWallet возвращает кошелёк; для нового пользователя: пустой кошелёк с Version 0.
	GetWallet(ctx context.Context, userID string) (*models.WalletLedger, error)
	// ApplyQuestionApproval сохраняет кошелёк при совпадении версии и отмечает вопрос
	// как оплаченный. false: вопрос уже был учтён, кошелёк не менялся.
	ApplyQuestionApproval(ctx context.Context, wallet models.WalletLedger, expectedVersion int, questionID string) (bool, error)
	// CreateWithdrawal в одной транзакции списывает баланс и создаёт заявку.
	CreateWithdrawal(ctx context.Context, wallet models.WalletLedger, expectedVersion int, req models.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	// UpdateWithdrawalStatus меняет статус заявки from → to и возвращает refund на баланс.
	// Возвращает models.ErrStateConflict, если статус уже изменён.
	UpdateWithdrawalStatus(ctx context.Context, id string, from, to models.WithdrawalStatus, refund int64, at time.Time) error
	ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service реализует кошелёк.
type Service struct {
	repo       Repository
	publisher  Publisher
	rules      config.Wallet
	maxRetries int
	now        func() time.Time
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, publisher Publisher, rules config.Rules, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		publisher:  publisher,
		rules:      rules.Wallet,
		maxRetries: rules.Progression.MaxConflictRetries,
		now:        time.Now,
		log:        log,
	}
}

// retry повторяет op при models.ErrStateConflict не более maxRetries раз.
func (s *Service) retry(operation string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if !errors.Is(err, models.ErrStateConflict) || attempt >= s.maxRetries {
			return err
		}
		metrics.ConflictRetries.WithLabelValues(operation).Inc()
	}
}

// OnQuestionApproved учитывает одобренный вопрос и начисляет за него фиксированную сумму.
// Повтор события с тем же questionID не меняет кошелёк.
func (s *Service) OnQuestionApproved(ctx context.Context, userID, questionID string) (*models.WalletLedger, error) {
	if userID == "" || questionID == "" {
		return nil, fmt.Errorf("%w: user id and question id are required", models.ErrValidation)
	}

	var result *models.WalletLedger
	err := s.retry("question_approved", func() error {
		w, err := s.repo.GetWallet(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get wallet: %w", err)
		}
		expected := w.Version
		next := *w
		next.ApprovedQuestionCount++
		next.Balance += s.rules.QuestionReward
		next.TotalEarned += s.rules.QuestionReward
		next.UpdatedAt = s.now()

		applied, err := s.repo.ApplyQuestionApproval(ctx, next, expected, questionID)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Info("question approval already applied", sl.User(userID), slog.String("question_id", questionID))
			result = w
			return nil
		}
		next.Version = expected + 1
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetWallet возвращает кошелёк пользователя.
func (s *Service) GetWallet(ctx context.Context, userID string) (*models.WalletLedger, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// CheckWithdrawal проверяет предусловия вывода в фиксированном порядке.
func CheckWithdrawal(w models.WalletLedger, amount int64, rules config.Wallet) error {
	if w.ApprovedQuestionCount < rules.MinApprovedQuestions {
		return models.ErrInsufficientApprovedCount
	}
	if amount < rules.MinWithdrawal {
		return models.ErrBelowMinimum
	}
	if amount > w.Balance {
		return models.ErrInsufficientBalance
	}
	return nil
}

// RequestWithdrawal резервирует сумму на балансе и создаёт заявку в статусе PENDING.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount int64, payoutRef string) (*models.WithdrawalRequest, error) {
	payoutRef = strings.TrimSpace(payoutRef)
	if userID == "" || payoutRef == "" {
		return nil, fmt.Errorf("%w: user id and payout reference are required", models.ErrValidation)
	}

	var req *models.WithdrawalRequest
	err := s.retry("withdrawal", func() error {
		w, err := s.repo.GetWallet(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get wallet: %w", err)
		}
		if err := CheckWithdrawal(*w, amount, s.rules); err != nil {
			return err
		}

		now := s.now()
		expected := w.Version
		next := *w
		next.Balance -= amount
		next.UpdatedAt = now

		candidate := models.WithdrawalRequest{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			PayoutRef: payoutRef,
			Status:    models.WithdrawalPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateWithdrawal(ctx, next, expected, candidate); err != nil {
			return err
		}
		req = &candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotEligible) {
			s.log.Info("withdrawal refused", sl.User(userID), sl.Err(err))
		}
		return nil, err
	}

	metrics.Withdrawals.WithLabelValues(string(req.Status)).Inc()
	s.publishUpdate(ctx, req)
	s.log.Info("withdrawal requested", sl.User(userID), slog.String("withdrawal_id", req.ID),
		slog.String("amount", models.MinorToMajor(amount).StringFixed(2)))
	return req, nil
}

// TransitionWithdrawal переводит заявку в новый статус. При отклонении
// зарезервированная сумма возвращается на баланс.
func (s *Service) TransitionWithdrawal(ctx context.Context, id string, to models.WithdrawalStatus) (*models.WithdrawalRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: withdrawal id is required", models.ErrValidation)
	}

	req, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	if req.Status == to {
		return req, nil
	}
	if !req.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, req.Status, to)
	}

	var refund int64
	if to == models.WithdrawalRejected {
		refund = req.Amount
	}
	now := s.now()
	if err := s.repo.UpdateWithdrawalStatus(ctx, id, req.Status, to, refund, now); err != nil {
		return nil, err
	}
	req.Status = to
	req.UpdatedAt = now

	metrics.Withdrawals.WithLabelValues(string(to)).Inc()
	s.publishUpdate(ctx, req)
	s.log.Info("withdrawal status changed", sl.User(req.UserID), slog.String("withdrawal_id", id),
		slog.String("status", string(to)))
	return req, nil
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (s *Service) ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	list, err := s.repo.ListWithdrawals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return list, nil
}

func (s *Service) publishUpdate(ctx context.Context, req *models.WithdrawalRequest) {
	evt := models.WithdrawalUpdatedEvent{
		EventID:      fmt.Sprintf("withdrawal:%s:%s", req.ID, req.Status),
		WithdrawalID: req.ID,
		UserID:       req.UserID,
		Amount:       req.Amount,
		Status:       req.Status,
	}
	if err := s.publisher.Publish(ctx, models.EventWithdrawalUpdated, evt); err != nil {
		s.log.Error("failed to publish withdrawal event", sl.User(req.UserID), sl.Err(err))
	}
}
