package processor

import (
	"fmt"
	"strings"

	"github.com/doctrove/enrich-cli/pkg/llm"
)

// Per-stage content budgets. OCR text can run to hundreds of pages;
// the leading excerpt carries the letterhead, date, and subject, which
// is what every stage actually needs.
const (
	titleContentLimit    = 2000
	tagContentLimit      = 3000
	metadataContentLimit = 3000
	categorizeLimit      = 2000
	existingTagLimit     = 50
)

func excerptContent(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	return content[:limit]
}

// titleSchema is the structured output contract of the title stage.
func titleSchema() llm.Schema {
	return llm.Schema{
		Name:        "record_title",
		Description: "Record the generated document title",
		Properties: map[string]llm.Property{
			"title": {Type: "string", Description: "Concise descriptive title, under 100 characters"},
		},
		Required: []string{"title"},
	}
}

func titlePrompt(content, language string) string {
	if language == "de" {
		return fmt.Sprintf(`Du bist ein Dokumentenverwaltungsassistent. Erstelle einen prägnanten, beschreibenden Titel für das folgende Dokument.

Der Titel sollte:
- Klar und spezifisch sein
- Wichtige Informationen enthalten (Datum, Absender, Typ)
- Unter 100 Zeichen lang sein
- Diesem Muster folgen, falls anwendbar: "Typ - Hauptinformation - Datum"

Dokumentinhalt:
%s`, excerptContent(content, titleContentLimit))
	}
	return fmt.Sprintf(`You are a document management assistant. Generate a concise, descriptive title for the following document.

The title should:
- Be clear and specific
- Include key information (date, sender, type)
- Be under 100 characters
- Follow this pattern when applicable: "Type - Key Info - Date"

Document content:
%s`, excerptContent(content, titleContentLimit))
}

func tagSchema() llm.Schema {
	return llm.Schema{
		Name:        "record_tags",
		Description: "Record the suggested document tags",
		Properties: map[string]llm.Property{
			"tags": {
				Type:        "array",
				Description: "Suggested tags with a confidence score each",
				Items: &llm.Property{
					Type: "object",
					Properties: map[string]llm.Property{
						"name":       {Type: "string", Description: "Lowercase hyphenated tag name"},
						"confidence": {Type: "number", Description: "How well the tag fits, 0.0 to 1.0"},
					},
					Required: []string{"name", "confidence"},
				},
			},
		},
		Required: []string{"tags"},
	}
}

func tagPrompt(content string, existingTags []string, maxTags int, language string) string {
	if len(existingTags) > existingTagLimit {
		existingTags = existingTags[:existingTagLimit]
	}
	existing := ""
	if len(existingTags) > 0 {
		existing = "\n\nExisting tags in system: " + strings.Join(existingTags, ", ")
	}

	if language == "de" {
		return fmt.Sprintf(`Analysiere das folgende Dokument und schlage passende Tags vor.

Regeln:
- Maximal %d Tags
- Tags sollten kurz sein (1-3 Wörter)
- Verwende Kleinbuchstaben
- Verwende Bindestriche statt Leerzeichen
- Bevorzuge existierende Tags, wenn passend
- Erstelle neue Tags nur wenn notwendig
- Bewerte jeden Tag mit einer Konfidenz zwischen 0.0 und 1.0

Dokumentinhalt:
%s%s`, maxTags, excerptContent(content, tagContentLimit), existing)
	}
	return fmt.Sprintf(`Analyze the following document and suggest appropriate tags.

Rules:
- Maximum %d tags
- Tags should be concise (1-3 words)
- Use lowercase
- Use hyphens instead of spaces
- Prefer existing tags when applicable
- Create new tags only when necessary
- Rate each tag with a confidence between 0.0 and 1.0

Document content:
%s%s`, maxTags, excerptContent(content, tagContentLimit), existing)
}

func metadataSchema() llm.Schema {
	return llm.Schema{
		Name:        "record_metadata",
		Description: "Record metadata extracted from the document",
		Properties: map[string]llm.Property{
			"document_date":   {Type: "string", Description: "Main document date, ISO format YYYY-MM-DD"},
			"correspondent":   {Type: "string", Description: "Name of the sender or correspondent"},
			"amount":          {Type: "number", Description: "Monetary amount if present"},
			"currency":        {Type: "string", Description: "Currency code, e.g. EUR or USD"},
			"invoice_number":  {Type: "string", Description: "Invoice number if present"},
			"due_date":        {Type: "string", Description: "Due date if present, ISO format"},
			"requires_action": {Type: "boolean", Description: "True when the document demands a response or payment"},
		},
	}
}

func metadataPrompt(content, language string) string {
	if language == "de" {
		return fmt.Sprintf(`Extrahiere die folgenden Metadaten aus dem Dokument:

- document_date: Das Hauptdatum des Dokuments (ISO format YYYY-MM-DD)
- correspondent: Name des Absenders/Korrespondenten
- amount: Betrag (wenn vorhanden, als Zahl)
- currency: Währung (wenn vorhanden, z.B. EUR, USD)
- invoice_number: Rechnungsnummer (wenn vorhanden)
- due_date: Fälligkeitsdatum (wenn vorhanden, ISO format)
- requires_action: true, wenn das Dokument eine Antwort oder Zahlung erfordert

Lasse fehlende Felder weg.

Dokumentinhalt:
%s`, excerptContent(content, metadataContentLimit))
	}
	return fmt.Sprintf(`Extract the following metadata from the document:

- document_date: The main date of the document (ISO format YYYY-MM-DD)
- correspondent: Name of sender/correspondent
- amount: Amount (if present, as number)
- currency: Currency (if present, e.g., EUR, USD)
- invoice_number: Invoice number (if present)
- due_date: Due date (if present, ISO format)
- requires_action: true when the document demands a response or payment

Omit fields that are not present.

Document content:
%s`, excerptContent(content, metadataContentLimit))
}

func categorizeSchema(availableTypes []string) llm.Schema {
	prop := llm.Property{Type: "string", Description: "The document type"}
	if len(availableTypes) > 0 {
		prop.Enum = availableTypes
	}
	return llm.Schema{
		Name:        "record_document_type",
		Description: "Record the document category",
		Properties:  map[string]llm.Property{"document_type": prop},
		Required:    []string{"document_type"},
	}
}

var defaultDocumentTypes = []string{"invoice", "receipt", "contract", "statement", "letter", "other"}

func categorizePrompt(content string, availableTypes []string, language string) string {
	types := availableTypes
	if len(types) == 0 {
		types = defaultDocumentTypes
	}
	list := strings.Join(types, ", ")

	if language == "de" {
		return fmt.Sprintf(`Kategorisiere das folgende Dokument in einen der folgenden Typen:
%s

Dokumentinhalt:
%s`, list, excerptContent(content, categorizeLimit))
	}
	return fmt.Sprintf(`Categorize the following document into one of these types:
%s

Document content:
%s`, list, excerptContent(content, categorizeLimit))
}

func summarySchema() llm.Schema {
	return llm.Schema{
		Name:        "record_summary",
		Description: "Record the document summary",
		Properties: map[string]llm.Property{
			"summary": {Type: "string", Description: "The document summary"},
		},
		Required: []string{"summary"},
	}
}

var summaryStyles = map[string]string{
	"concise":       "a brief, concise summary",
	"detailed":      "a detailed summary covering all important points",
	"bullet_points": "a summary in bullet point format",
}

var summaryStylesDE = map[string]string{
	"concise":       "eine kurze, prägnante Zusammenfassung",
	"detailed":      "eine detaillierte Zusammenfassung aller wichtigen Punkte",
	"bullet_points": "eine Zusammenfassung in Stichpunkten",
}

func summaryPrompt(content string, maxLength int, style, language string) string {
	if language == "de" {
		instruction, ok := summaryStylesDE[style]
		if !ok {
			instruction = summaryStylesDE["concise"]
		}
		return fmt.Sprintf(`Erstelle %s des folgenden Dokuments.

Maximal %d Zeichen.

Dokumentinhalt:
%s`, instruction, maxLength, content)
	}
	instruction, ok := summaryStyles[style]
	if !ok {
		instruction = summaryStyles["concise"]
	}
	return fmt.Sprintf(`Create %s of the following document.

Maximum %d characters.

Document content:
%s`, instruction, maxLength, content)
}
