package ocr

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Weights of the heuristic confidence components
const (
	HeuristicPrintableWeight  = 0.5
	HeuristicTokenWeight      = 0.3
	HeuristicDictionaryWeight = 0.2
)

var (
	numericToken = regexp.MustCompile(`^[$(+\-]?\d[\d.,/:\-]*%?\)?$`)
	codeToken    = regexp.MustCompile(`^[A-Za-z0-9#\-]+$`)
)

// dictionary holds common English and commercial real-estate words
var dictionary = makeSet(
	"a", "an", "and", "the", "of", "to", "in", "for", "on", "at", "by", "with", "from", "or",
	"is", "are", "be", "as", "per", "no", "not", "all", "total", "net", "gross", "date",
	"name", "address", "street", "st", "avenue", "ave", "road", "rd", "boulevard", "blvd",
	"drive", "dr", "lane", "ln", "suite", "ste", "floor", "unit", "units", "building",
	"city", "state", "zip", "phone", "fax", "email", "contact", "tenant", "tenants",
	"landlord", "lease", "leases", "term", "start", "end", "expiration", "commencement",
	"rent", "rents", "rental", "monthly", "annual", "annually", "year", "years", "month",
	"months", "base", "market", "deposit", "security", "income", "expense", "expenses",
	"operating", "noi", "cap", "rate", "price", "sale", "sales", "sold", "value", "cost",
	"costs", "tax", "taxes", "insurance", "utilities", "maintenance", "repairs",
	"management", "fee", "fees", "vacancy", "occupancy", "occupied", "vacant", "square",
	"feet", "foot", "sf", "sq", "ft", "acres", "property", "properties", "office",
	"retail", "industrial", "multifamily", "apartment", "apartments", "parking",
	"offering", "memorandum", "summary", "investment", "highlights", "pro", "forma",
	"proforma", "budget", "actual", "variance", "report", "period", "comparable",
	"comparables", "comps", "roll", "schedule", "amount", "balance", "due", "paid",
	"payment", "charges", "charge", "cam", "reimbursements", "other", "inc", "llc",
	"corp", "company", "north", "south", "east", "west", "n", "s", "e", "w",
)

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// HeuristicConfidence estimates recognition reliability for engines that report
// no confidence. It combines the share of printable runes, the share of
// well-formed tokens and the share of alphabetic tokens found in a fixed word
// list. The result is deterministic and lies in [0,1]; empty text scores 0.
func HeuristicConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	total, printable := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError || unicode.Is(unicode.Co, r) {
			continue
		}
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' {
			printable++
		}
	}
	printableRatio := float64(printable) / float64(total)

	tokens := strings.Fields(text)
	wellFormed, alpha, known := 0, 0, 0
	for _, tok := range tokens {
		trimmed := strings.Trim(tok, `.,;:!?"'()`)
		if trimmed == "" {
			trimmed = tok
		}
		n := utf8.RuneCountInString(trimmed)
		isAlpha := allLetters(trimmed)

		if n >= 1 && n <= 20 && (isAlpha || numericToken.MatchString(trimmed) || codeToken.MatchString(trimmed)) {
			wellFormed++
		}
		if isAlpha {
			alpha++
			if _, ok := dictionary[strings.ToLower(trimmed)]; ok {
				known++
			}
		}
	}
	tokenRatio := float64(wellFormed) / float64(len(tokens))

	dictionaryRatio := 1.0
	if alpha > 0 {
		dictionaryRatio = float64(known) / float64(alpha)
	}

	return clamp01(HeuristicPrintableWeight*printableRatio +
		HeuristicTokenWeight*tokenRatio +
		HeuristicDictionaryWeight*dictionaryRatio)
}

func allLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
