package worker

// close_report.go
// Processes session close-report jobs from QueueCloseReport: renders the
// reconciliation summary of a closed session and mails it to the supervisor
// address. Delivery goes through the SMTP circuit breaker with bounded
// exponential backoff; exhausted jobs land in the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tallerpos/internal/infra"
	"tallerpos/internal/model"
	"tallerpos/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

const maxSendRetries = 3

// CloseReportJobPayload is the job envelope sent to QueueCloseReport.
type CloseReportJobPayload struct {
	SessionID string `json:"session_id"`
}

// CloseReportWorker mails the close summary of a session.
type CloseReportWorker struct {
	repo      repository.CashboxRepository
	mailer    *infra.Mailer
	cb        *infra.CircuitBreaker
	rdb       *redis.Client
	recipient string
}

func NewCloseReportWorker(
	repo repository.CashboxRepository,
	mailer *infra.Mailer,
	cb *infra.CircuitBreaker,
	rdb *redis.Client,
	recipient string,
) *CloseReportWorker {
	return &CloseReportWorker{
		repo:      repo,
		mailer:    mailer,
		cb:        cb,
		rdb:       rdb,
		recipient: recipient,
	}
}

// Process handles a single close-report job.
func (w *CloseReportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload CloseReportJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("close_report: invalid payload")
		return
	}
	if w.recipient == "" {
		log.Warn().Msg("close_report: no recipient configured — skipping")
		return
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		log.Error().Str("session_id", payload.SessionID).Msg("close_report: invalid session_id")
		return
	}

	session, err := w.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("close_report: session lookup failed")
		return
	}
	if session.State != model.SessionClosed {
		log.Warn().Str("session_id", payload.SessionID).Msg("close_report: session not closed — skipping")
		return
	}

	subject := fmt.Sprintf("Till close report — register %d", session.Register)
	body := buildCloseReportBody(session)

	backoff := retry.WithMaxRetries(maxSendRetries, retry.NewExponential(2*time.Second))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := w.cb.Execute(func() error {
			return w.mailer.Send(w.recipient, subject, body)
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if sendErr != nil {
		SendToDLQ(ctx, w.rdb, QueueCloseReport, "close_report", raw, sendErr.Error(), maxSendRetries+1)
		return
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("to", w.recipient).
		Msg("close_report: sent")
}

func buildCloseReportBody(s *model.CashSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Register:       %d\n", s.Register)
	fmt.Fprintf(&b, "Opened at:      %s\n", s.OpenedAt.UTC().Format(time.RFC3339))
	if s.ClosedAt != nil {
		fmt.Fprintf(&b, "Closed at:      %s\n", s.ClosedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Opening float:  %s\n\n", s.OpeningFloat.String())

	fmt.Fprintf(&b, "System totals:   cash %s, card %s, transfer %s\n",
		s.SystemCash.String(), s.SystemCard.String(), s.SystemTransfer.String())
	if s.DeclaredCash != nil && s.DeclaredCard != nil && s.DeclaredTransfer != nil {
		fmt.Fprintf(&b, "Declared totals: cash %s, card %s, transfer %s\n",
			s.DeclaredCash.String(), s.DeclaredCard.String(), s.DeclaredTransfer.String())
	}
	if s.Variance != nil {
		fmt.Fprintf(&b, "\nCash variance:   %s", s.Variance.String())
		switch {
		case s.Variance.IsZero():
			b.WriteString(" (clean close)\n")
		case s.Variance.IsPositive():
			b.WriteString(" (overage)\n")
		default:
			b.WriteString(" (shortage)\n")
		}
	}
	if s.Notes != nil && *s.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", *s.Notes)
	}
	return b.String()
}
