package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/api/dto"
	"github.com/spec-kit/expense-whatsapp/internal/domain"
	"github.com/spec-kit/expense-whatsapp/internal/events"
	"github.com/spec-kit/expense-whatsapp/internal/extraction"
	"github.com/spec-kit/expense-whatsapp/internal/gateway"
	"github.com/spec-kit/expense-whatsapp/internal/observability"
	"github.com/spec-kit/expense-whatsapp/internal/persistence"
	"github.com/spec-kit/expense-whatsapp/internal/repository"
	apperrors "github.com/spec-kit/expense-whatsapp/pkg/util"
)

// User-facing copy. The pipeline speaks the sender's language; internal
// error detail only ever goes to logs.
const (
	msgNotRegistered    = "Hola! 👋 No reconocemos este número. Por favor contacta a soporte para registrarte."
	msgCancelled        = "🚫 Operación cancelada. Envíame un nuevo ticket cuando quieras."
	msgSendPhoto        = "Envíame una foto de un ticket o factura para empezar. 📸"
	msgProcessing       = "Procesando comprobante... 🧾⏳"
	msgNoMedia          = "No pude descargar la imagen."
	msgExtractionFailed = "Tuve un problema leyendo la imagen. 😕 Intenta sacarla más clara o con mejor luz."
	msgChooseOption     = "Por favor selecciona una opción:"
	msgEditPrompt       = "¿Qué dato quieres corregir? Escribe el cambio así: 'Monto: 5000' o 'Fecha: 2023-12-01'. O escribe 'Cancelar'."
	msgEditFormat       = "Formato no entendido. Usa 'Campo: Valor'. Ej: 'Monto: 1500'. O escribe 'Cancelar'."
	msgNoOrganization   = "Error: No perteneces a ninguna organización."
	msgInsertFailed     = "Error guardando el ticket. Intenta de nuevo."
	msgTicketSaved      = "✅ Ticket guardado exitosamente!"
)

var confirmationButtons = []gateway.Button{
	{ID: "confirm_yes", Title: "Si, cargar gasto"},
	{ID: "confirm_edit", Title: "Editar datos"},
	{ID: "confirm_cancel", Title: "Cancelar"},
}

var retryButtons = []gateway.Button{
	{ID: "confirm_yes", Title: "Si"},
	{ID: "confirm_edit", Title: "Editar"},
	{ID: "confirm_cancel", Title: "Cancelar"},
}

// ConversationService drives the per-phone state machine for one stored
// inbound message at a time.
type ConversationService struct {
	messages   repository.MessageRepository
	sessions   repository.SessionRepository
	tickets    repository.TicketRepository
	identity   repository.IdentityRepository
	sender     gateway.MessageSender
	media      gateway.MediaDownloader
	extractor  extraction.Extractor
	locker     persistence.SessionLocker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ConversationDependencies bundles collaborators for the service.
type ConversationDependencies struct {
	MessageRepo  repository.MessageRepository
	SessionRepo  repository.SessionRepository
	TicketRepo   repository.TicketRepository
	IdentityRepo repository.IdentityRepository
	Sender       gateway.MessageSender
	Media        gateway.MediaDownloader
	Extractor    extraction.Extractor
	Locker       persistence.SessionLocker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewConversationService constructs the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		messages:   deps.MessageRepo,
		sessions:   deps.SessionRepo,
		tickets:    deps.TicketRepo,
		identity:   deps.IdentityRepo,
		sender:     deps.Sender,
		media:      deps.Media,
		extractor:  deps.Extractor,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Process runs the state machine for the message identified by its provider
// id. Re-delivery of an already processed message is a no-op. A returned
// error means the message was NOT marked processed and stays eligible for
// inspection or retry.
func (s *ConversationService) Process(ctx context.Context, waMessageID string) error {
	msg, err := s.messages.GetByWaMessageID(ctx, waMessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("message", map[string]any{"wa_message_id": waMessageID})
		}
		return err
	}
	if msg.ProcessedStatus == domain.ProcessedStatusProcessed {
		s.logger.Info("message already processed", zap.String("wa_message_id", waMessageID))
		return nil
	}

	// Two messages from the same phone must not interleave session updates.
	release, err := s.locker.Acquire(ctx, msg.SenderPhone)
	if err != nil {
		return err
	}
	defer release()

	// Re-check under the lock: a concurrent redelivery may have finished
	// while we waited.
	msg, err = s.messages.GetByWaMessageID(ctx, waMessageID)
	if err != nil {
		return err
	}
	if msg.ProcessedStatus == domain.ProcessedStatusProcessed {
		return nil
	}

	session, err := s.resolveSession(ctx, msg.SenderPhone)
	if err != nil {
		return err
	}

	// Identity gating runs before any state logic.
	if !session.Registered() {
		s.sendText(ctx, msg.SenderPhone, msgNotRegistered, msg.WaMessageID)
		if err := s.messages.UpdateStatus(ctx, msg.ID, domain.ProcessedStatusFailedAuth); err != nil {
			return err
		}
		s.metrics.RecordPipelineOutcome("failed_auth")
		return nil
	}

	body, mediaID := messageContent(msg)
	s.logger.Info("processing message",
		zap.String("wa_message_id", msg.WaMessageID),
		zap.String("state", string(session.CurrentState)),
		zap.String("type", string(msg.MessageType)))
	s.publish(ctx, events.EventMessageReceived, msg, events.MessageReceivedPayload{
		MessageType: msg.MessageType,
		State:       session.CurrentState,
	})

	// Global cancel precedes all state-specific handling.
	if domain.IsCancelKeyword(body) && session.CurrentState != domain.SessionStateIdle {
		if err := s.sessions.UpdateState(ctx, session.ID, domain.SessionStateIdle, nil); err != nil {
			return err
		}
		s.sendText(ctx, msg.SenderPhone, msgCancelled, msg.WaMessageID)
		s.publish(ctx, events.EventSessionCancelled, msg, nil)
		return s.markProcessed(ctx, msg)
	}

	switch session.CurrentState {
	case domain.SessionStateIdle:
		err = s.handleIdle(ctx, msg, session, mediaID)
	case domain.SessionStateWaitingConfirmation:
		err = s.handleWaitingConfirmation(ctx, msg, session, body)
	case domain.SessionStateEditing:
		err = s.handleEditing(ctx, msg, session, body)
	default:
		return fmt.Errorf("unknown session state %q", session.CurrentState)
	}
	if err != nil {
		return err
	}

	return s.markProcessed(ctx, msg)
}

// resolveSession loads the session for the phone, creating it lazily with
// identity resolution on first contact. Profiles are checked before
// collaborators; the first match wins.
func (s *ConversationService) resolveSession(ctx context.Context, phone string) (*domain.ConversationSession, error) {
	session, err := s.sessions.GetByPhone(ctx, phone)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	identity, err := s.identity.ResolvePhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	session = &domain.ConversationSession{
		PhoneNumber:  phone,
		CurrentState: domain.SessionStateIdle,
		TempData:     domain.TempData{},
	}
	if identity != nil {
		session.UserID = &identity.UserID
		session.IsCollaborator = identity.IsCollaborator
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ConversationService) handleIdle(ctx context.Context, msg *domain.InboundMessage, session *domain.ConversationSession, mediaID string) error {
	if msg.MessageType != domain.MessageTypeImage {
		s.sendText(ctx, msg.SenderPhone, msgSendPhoto, msg.WaMessageID)
		return nil
	}
	if mediaID == "" {
		s.sendText(ctx, msg.SenderPhone, msgNoMedia, msg.WaMessageID)
		return nil
	}

	s.sendText(ctx, msg.SenderPhone, msgProcessing, msg.WaMessageID)

	receipt, err := s.extractFromMedia(ctx, mediaID)
	if err != nil {
		// Recoverable: the session stays in IDLE; the user retries with a
		// better photo.
		s.logger.Warn("extraction failed",
			zap.String("wa_message_id", msg.WaMessageID),
			zap.Error(err))
		s.publish(ctx, events.EventExtractionFailed, msg, events.ExtractionFailedPayload{Reason: err.Error()})
		s.metrics.RecordPipelineOutcome("extraction_failed")
		s.sendText(ctx, msg.SenderPhone, msgExtractionFailed, msg.WaMessageID)
		return nil
	}

	tempData := receipt.ToTempData()
	if err := s.sessions.UpdateState(ctx, session.ID, domain.SessionStateWaitingConfirmation, tempData); err != nil {
		return err
	}
	s.publish(ctx, events.EventExtractionSucceeded, msg, events.ExtractionSucceededPayload{
		MerchantName: receipt.MerchantName,
		Amount:       receipt.Amount,
		Currency:     receipt.Currency,
		Category:     receipt.Category,
	})
	s.sendButtons(ctx, msg.SenderPhone, domain.SummaryText(tempData), confirmationButtons, msg.WaMessageID)
	return nil
}

func (s *ConversationService) extractFromMedia(ctx context.Context, mediaID string) (*domain.ExtractedReceipt, error) {
	data, mimeType, err := s.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extraction.ErrMediaFetch, err)
	}
	return s.extractor.FromImage(ctx, data, mimeType)
}

func (s *ConversationService) handleWaitingConfirmation(ctx context.Context, msg *domain.InboundMessage, session *domain.ConversationSession, body string) error {
	switch {
	case domain.IsAcceptKeyword(body):
		return s.confirmTicket(ctx, msg, session)
	case domain.IsEditRequest(body):
		if err := s.sessions.UpdateState(ctx, session.ID, domain.SessionStateEditing, session.TempData); err != nil {
			return err
		}
		s.sendText(ctx, msg.SenderPhone, msgEditPrompt, msg.WaMessageID)
		return nil
	default:
		s.sendButtons(ctx, msg.SenderPhone, msgChooseOption, retryButtons, msg.WaMessageID)
		return nil
	}
}

// confirmTicket resolves the organization for the session's identity and
// inserts the ticket. On insert failure the session keeps its state and data
// so the user can retry the confirmation.
func (s *ConversationService) confirmTicket(ctx context.Context, msg *domain.InboundMessage, session *domain.ConversationSession) error {
	orgID, isCollaborator, err := s.resolveOrganization(ctx, *session.UserID)
	if err != nil {
		return err
	}
	if orgID == "" {
		s.sendText(ctx, msg.SenderPhone, msgNoOrganization, msg.WaMessageID)
		return nil
	}

	ticket, err := ticketFromTempData(session.TempData, orgID, *session.UserID, isCollaborator)
	if err == nil {
		err = s.tickets.Create(ctx, ticket)
	}
	if err != nil {
		s.logger.Error("ticket insert failed",
			zap.String("wa_message_id", msg.WaMessageID),
			zap.Error(err))
		s.metrics.RecordPipelineOutcome("ticket_insert_failed")
		s.sendText(ctx, msg.SenderPhone, msgInsertFailed, msg.WaMessageID)
		return nil
	}

	s.sendText(ctx, msg.SenderPhone, msgTicketSaved, msg.WaMessageID)
	if err := s.sessions.UpdateState(ctx, session.ID, domain.SessionStateIdle, nil); err != nil {
		return err
	}
	s.publish(ctx, events.EventTicketCreated, msg, events.TicketCreatedPayload{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		Amount:         ticket.Amount,
		Currency:       ticket.Currency,
	})
	s.metrics.RecordPipelineOutcome("ticket_created")
	return nil
}

// resolveOrganization checks the collaborator record first, then regular
// organization membership. An unknown user yields an empty org id, not an
// error.
func (s *ConversationService) resolveOrganization(ctx context.Context, userID string) (string, bool, error) {
	orgID, err := s.identity.CollaboratorOrganization(ctx, userID)
	if err == nil {
		return orgID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	orgID, err = s.identity.MemberOrganization(ctx, userID)
	if err == nil {
		return orgID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}
	return "", false, nil
}

func (s *ConversationService) handleEditing(ctx context.Context, msg *domain.InboundMessage, session *domain.ConversationSession, body string) error {
	key, value, mapped, ok := domain.ParseEditCommand(body)
	if !ok {
		s.sendText(ctx, msg.SenderPhone, msgEditFormat, msg.WaMessageID)
		return nil
	}
	if !mapped {
		s.logger.Warn("unmapped edit field passed through",
			zap.String("field", key),
			zap.String("wa_message_id", msg.WaMessageID))
	}

	tempData := session.TempData
	if tempData == nil {
		tempData = domain.TempData{}
	}
	tempData[key] = value

	if err := s.sessions.UpdateState(ctx, session.ID, domain.SessionStateWaitingConfirmation, tempData); err != nil {
		return err
	}
	s.sendText(ctx, msg.SenderPhone, domain.UpdatedSummaryText(tempData), msg.WaMessageID)
	return nil
}

func (s *ConversationService) markProcessed(ctx context.Context, msg *domain.InboundMessage) error {
	if err := s.messages.UpdateStatus(ctx, msg.ID, domain.ProcessedStatusProcessed); err != nil {
		return err
	}
	s.metrics.RecordPipelineOutcome("processed")
	return nil
}

// sendText delivers best-effort: a failed outbound send is logged, never
// fatal to the run.
func (s *ConversationService) sendText(ctx context.Context, to, text, contextID string) {
	if err := s.sender.SendText(ctx, to, text, contextID); err != nil {
		s.logger.Warn("outbound send failed", zap.String("to", to), zap.Error(err))
	}
}

func (s *ConversationService) sendButtons(ctx context.Context, to, text string, buttons []gateway.Button, contextID string) {
	if err := s.sender.SendInteractiveButtons(ctx, to, text, buttons, contextID); err != nil {
		s.logger.Warn("outbound interactive send failed", zap.String("to", to), zap.Error(err))
	}
}

func (s *ConversationService) publish(ctx context.Context, eventType events.EventType, msg *domain.InboundMessage, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(eventType, msg.WaMessageID, msg.SenderPhone, payload)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

// messageContent digs the text body and media id out of the stored provider
// envelope. Button replies use the tapped title as the text body.
func messageContent(msg *domain.InboundMessage) (body, mediaID string) {
	var envelope dto.WebhookEnvelope
	if err := json.Unmarshal(msg.RawPayload, &envelope); err != nil {
		return "", ""
	}

	var found *dto.WebhookMessage
	for ei := range envelope.Entry {
		for ci := range envelope.Entry[ei].Changes {
			messages := envelope.Entry[ei].Changes[ci].Value.Messages
			for mi := range messages {
				if messages[mi].ID == msg.WaMessageID {
					found = &messages[mi]
				}
			}
		}
	}
	if found == nil {
		return "", ""
	}

	if found.Interactive != nil && found.Interactive.ButtonReply != nil {
		body = found.Interactive.ButtonReply.Title
	} else if found.Text != nil {
		body = found.Text.Body
	}
	if found.Image != nil {
		mediaID = found.Image.ID
	}
	return body, mediaID
}

// ticketFromTempData builds the durable record. Edited values arrive as
// strings and are coerced here; failures surface as an insert error so no
// captured data is lost.
func ticketFromTempData(data domain.TempData, orgID, userID string, isCollaborator bool) (*domain.Ticket, error) {
	amount, err := toFloat(data["amount"])
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	ticket := &domain.Ticket{
		OrganizationID: orgID,
		Date:           toString(data["date"]),
		Amount:         amount,
		Currency:       toString(data["currency"]),
		MerchantName:   toString(data["merchant_name"]),
		Category:       toString(data["category"]),
		Status:         domain.TicketStatusPending,
		Source:         domain.TicketSourceWhatsApp,
	}
	if ticket.Currency == "" {
		ticket.Currency = "ARS"
	}

	if iva, present := data["iva_amount"]; present && iva != nil {
		val, err := toFloat(iva)
		if err != nil {
			return nil, fmt.Errorf("invalid iva_amount: %w", err)
		}
		ticket.IvaAmount = &val
	}

	if isCollaborator {
		ticket.CollaboratorID = &userID
	} else {
		ticket.CreatedBy = &userID
	}
	return ticket, nil
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		return strconv.ParseFloat(val, 64)
	case nil:
		return 0, errors.New("value missing")
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
