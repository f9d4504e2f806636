package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Publisher renders and emails documents and records both in history.
type Publisher struct {
	Renderer Renderer
	Mailer   Mailer
	Journal  Journal
}

// PDF renders data and appends a pdf_generated history entry.
func (p Publisher) PDF(ctx context.Context, id int64, data RenderData, actorID int64) ([]byte, string, error) {
	if p.Renderer == nil {
		return nil, "", fmt.Errorf("documents: no renderer configured")
	}
	pdf, err := p.Renderer.RenderPDF(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("render %s %s: %w", data.Type, data.Code, err)
	}
	filename := data.Code + ".pdf"
	if err := p.Journal.AppendHistory(ctx, data.Type, id, Event(EventPDFGenerated, filename, actorID)); err != nil {
		return nil, "", err
	}
	return pdf, filename, nil
}

// Email queues the rendered email to the recipient and appends an email_sent
// history entry.
func (p Publisher) Email(ctx context.Context, id int64, data RenderData, to string, actorID int64) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return shared.NewValidationError("to", "This field is required.")
	}
	if p.Renderer == nil || p.Mailer == nil {
		return fmt.Errorf("documents: email delivery not configured")
	}
	subject, body, err := p.Renderer.RenderEmail(data)
	if err != nil {
		return fmt.Errorf("render email %s %s: %w", data.Type, data.Code, err)
	}
	if err := p.Mailer.SendDocumentEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("queue email %s %s: %w", data.Type, data.Code, err)
	}
	return p.Journal.AppendHistory(ctx, data.Type, id, Event(EventEmailSent, "to "+to, actorID))
}
