package classifier

import (
	"regexp"
	"sort"
	"strings"

	"trust_gateway/internal/models"
)

// Package classifier inspects request text and attached-document content for
// personally identifiable information and legal-sensitivity markers, and
// assigns a sensitivity level. Classification is advisory: it never blocks a
// request and degrades to public/no-PII on unmatchable input. It is a pure
// function of its inputs, which keeps audits reproducible.

// PII category names recorded in assessments and audit entries.
const (
	CategoryEmail       = "email"
	CategoryPhone       = "phone"
	CategoryNationalID  = "national-id"
	CategoryTaxID       = "tax-id"
	CategoryCard        = "payment-card"
	CategoryBankAccount = "bank-account"
	CategoryCaseParty   = "case-party"
)

// highRiskCategories escalate the level to restricted when matched.
var highRiskCategories = map[string]bool{
	CategoryNationalID:  true,
	CategoryTaxID:       true,
	CategoryCard:        true,
	CategoryBankAccount: true,
}

// piiMatcher binds one compiled pattern to the category it contributes.
type piiMatcher struct {
	category string
	pattern  *regexp.Regexp
}

// The matcher order is fixed; categories are deduplicated and sorted in the
// final assessment, so order only matters for readability here.
var piiMatchers = []piiMatcher{
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{CategoryPhone, regexp.MustCompile(`\b(?:\+\d{1,3}[-\s]?)?(?:\(\d{2,4}\)[-\s]?)?\d{3}[-\s]\d{4}\b|\b(?:\+\d{1,3}[-\s]?)?[6-9]\d{9}\b`)},
	{CategoryNationalID, regexp.MustCompile(`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b|\b[2-9]\d{3}\s\d{4}\s\d{4}\b`)},
	{CategoryTaxID, regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)},
	{CategoryCard, regexp.MustCompile(`\b(?:\d{4}[-\s]){3}\d{4}\b`)},
	{CategoryBankAccount, regexp.MustCompile(`(?i)\b(?:bank\s+account|account\s+(?:no|number))\b[.:\s]*\d{6,}`)},
	{CategoryCaseParty, regexp.MustCompile(`(?i)\b(?:Mr|Mrs|Ms|Dr|Adv)\.\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:v\.?s?\.?|versus)\s`)},
}

// caseIdentifierPattern matches specific case references with numbers, not
// general legal vocabulary.
var caseIdentifierPattern = regexp.MustCompile(`(?i)\b(?:case|suit|petition|appeal|fir)\s*(?:no\.?)?\s*[:#]?\s*\d+`)

// sensitiveKeywords raise content to internal when no PII or document is
// present. Matched case-insensitively against the combined text.
var sensitiveKeywords = []string{
	"attorney-client privilege",
	"privileged communication",
	"privileged and confidential",
	"strictly confidential",
	"not for circulation",
	"internal use only",
	"trade secret",
	"client name",
	"client details",
	"petitioner",
	"respondent",
	"plaintiff",
	"defendant",
	"witness statement",
	"affidavit",
	"settlement amount",
	"power of attorney",
	"non-disclosure agreement",
}

// Classifier detects PII and assigns sensitivity levels. Zero-value construction
// via New; safe for concurrent use (all state is immutable after creation).
type Classifier struct {
	matchers []piiMatcher
	keywords []string
}

// New returns a classifier with the built-in pattern set.
func New() *Classifier {
	return &Classifier{
		matchers: piiMatchers,
		keywords: sensitiveKeywords,
	}
}

// Classify inspects text plus optional attached-document content and returns
// an immutable assessment. It never fails: empty or garbled input yields
// level=public with no PII rather than an error.
func (c *Classifier) Classify(text, attachedDocumentText string) models.SensitivityAssessment {
	documentAttached := attachedDocumentText != ""

	full := text
	if documentAttached {
		full += " " + attachedDocumentText
	}

	categorySet := make(map[string]bool)
	for _, m := range c.matchers {
		if m.pattern.MatchString(full) {
			categorySet[m.category] = true
		}
	}

	level := models.LevelPublic
	if documentAttached {
		// Attached documents always raise confidential, regardless of what
		// the text classification finds.
		level = models.LevelConfidential
	}

	categories := make([]string, 0, len(categorySet))
	for cat := range categorySet {
		categories = append(categories, cat)
		level = level.Max(models.LevelConfidential)
		if highRiskCategories[cat] {
			level = level.Max(models.LevelRestricted)
		}
	}
	sort.Strings(categories)

	piiDetected := len(categories) > 0

	if !piiDetected && !documentAttached && c.matchesKeywords(full) {
		level = level.Max(models.LevelInternal)
	}

	assessment := models.SensitivityAssessment{
		Level:            level,
		PIIDetected:      piiDetected,
		DocumentAttached: documentAttached,
	}
	if piiDetected {
		assessment.PIICategories = categories
	}
	return assessment
}

// matchesKeywords checks the sensitive-keyword heuristics and specific case
// identifiers used for the internal level.
func (c *Classifier) matchesKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return caseIdentifierPattern.MatchString(text)
}
