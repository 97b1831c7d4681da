package ingest

import (
	"path"
	"strings"
)

// Format is the declared layout of a raw document.
type Format string

const (
	// FormatDocument is a paragraph-structured document (DOCX, or PDF by content).
	FormatDocument Format = "document"
	// FormatLegacyOffice is a tabular or legacy office file (XLS, XLSX).
	FormatLegacyOffice Format = "legacy-office"
	FormatPDF          Format = "pdf"
	FormatHTML         Format = "html"
	FormatText         Format = "text"
)

// RawDocument is an uploaded or fetched file handed to the pipeline. Name is
// the original file name and doubles as the title of last resort.
type RawDocument struct {
	Name   string
	Data   []byte
	Format Format
	Source string
	URL    string
}

// Listing is an opportunity whose fields were already supplied by an external
// feed. Listings skip text extraction.
type Listing struct {
	Source       string   `json:"source"`
	ExternalID   string   `json:"external_id"`
	Title        string   `json:"title"`
	Agency       string   `json:"agency"`
	IssueDate    string   `json:"issue_date"`
	DueDate      string   `json:"due_date"`
	URL          string   `json:"url"`
	Category     string   `json:"category"`
	Budget       *float64 `json:"budget"`
	CustomerType string   `json:"customer_type"`
	Description  string   `json:"description"`
}

// Result reports what one ingestion did.
type Result struct {
	OpportunityID string  `json:"opportunity_id"`
	Fingerprint   string  `json:"fingerprint"`
	Created       bool    `json:"created"`
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Score         float64 `json:"score"`
	Decision      string  `json:"decision"`
	Status        string  `json:"status"`
}

// FormatFromFilename guesses the format hint from a file extension.
// Unknown extensions are treated as plain text.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".docx", ".docm":
		return FormatDocument
	case ".xls", ".xlsx", ".xlsm", ".doc":
		return FormatLegacyOffice
	case ".pdf":
		return FormatPDF
	case ".html", ".htm":
		return FormatHTML
	}
	return FormatText
}
