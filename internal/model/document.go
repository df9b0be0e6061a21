package model

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the overall state of one extraction run over a document
type RunStatus string

const (
	RunRunning  RunStatus = "RUNNING"
	RunPartial  RunStatus = "PARTIAL"
	RunComplete RunStatus = "COMPLETE"
	RunAborted  RunStatus = "ABORTED"
)

// DocumentType is the inferred kind of commercial real-estate document
type DocumentType string

const (
	DocRentRoll          DocumentType = "rent_roll"
	DocOfferingMemo      DocumentType = "offering_memo"
	DocCompSales         DocumentType = "comp_sales"
	DocLeaseAgreement    DocumentType = "lease_agreement"
	DocFinancialProforma DocumentType = "financial_proforma"
	DocPMReport          DocumentType = "pm_report"
	DocUnknown           DocumentType = "unknown"
)

// DocumentClassification is the classifier's verdict for a document
type DocumentClassification struct {
	DocumentType DocumentType             `json:"document_type" yaml:"document_type"`
	Confidence   float64                  `json:"confidence" yaml:"confidence"`
	Scores       map[DocumentType]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// UnknownClassification is used whenever classification is absent or too weak
func UnknownClassification() DocumentClassification {
	return DocumentClassification{DocumentType: DocUnknown}
}

// PageRecord collects the extracted fields of a single page keyed by region name
type PageRecord struct {
	Page   int                          `json:"page"`
	Fields map[string]*ExtractionResult `json:"fields"`
}

func (p *PageRecord) clone() *PageRecord {
	c := &PageRecord{Page: p.Page, Fields: make(map[string]*ExtractionResult, len(p.Fields))}
	for k, v := range p.Fields {
		c.Fields[k] = v.Clone()
	}
	return c
}

// pageSlot owns one page's record. Its mutex makes it the single writer.
type pageSlot struct {
	mu     sync.Mutex
	record *PageRecord
}

// Document is the aggregate root of one extraction run
type Document struct {
	ID             string                 `json:"id"`
	PageCount      int                    `json:"page_count"`
	Regions        []Region               `json:"regions"`
	Classification DocumentClassification `json:"classification"`
	Records        []*PageRecord          `json:"records"`
	Results        []*ExtractionResult    `json:"results"`
	RunStatus      RunStatus              `json:"run_status"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at,omitempty"`

	slots     map[int]*pageSlot
	resultsMu sync.Mutex
	statusMu  sync.RWMutex
}

// NewDocument creates a document for a run. The region list is copied so later
// edits by the caller do not leak into the run.
func NewDocument(id string, pageCount int, regions []Region) *Document {
	if id == "" {
		id = uuid.NewString()
	}

	d := &Document{
		ID:             id,
		PageCount:      pageCount,
		Regions:        append([]Region(nil), regions...),
		Classification: UnknownClassification(),
		RunStatus:      RunRunning,
		StartedAt:      time.Now(),
		slots:          make(map[int]*pageSlot),
	}
	for _, r := range d.Regions {
		if _, ok := d.slots[r.Page]; !ok {
			d.slots[r.Page] = &pageSlot{}
		}
	}
	return d
}

// Pages returns the sorted distinct page indexes that have at least one region
func (d *Document) Pages() []int {
	pages := make([]int, 0, len(d.slots))
	for p := range d.slots {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// AddResult records a region's terminal result as a diagnostic entry
func (d *Document) AddResult(res *ExtractionResult) {
	d.resultsMu.Lock()
	defer d.resultsMu.Unlock()
	d.Results = append(d.Results, res)
}

// Record inserts a result into its page's record under the page lock and returns
// a snapshot of the updated record. Distinct regions sharing a name get the
// region ID appended so neither entry overwrites the other.
func (d *Document) Record(res *ExtractionResult) (*PageRecord, error) {
	slot, ok := d.slots[res.Page]
	if !ok {
		return nil, fmt.Errorf("%w: page %d has no regions in document %s", ErrSystem, res.Page, d.ID)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.record == nil {
		slot.record = &PageRecord{Page: res.Page, Fields: make(map[string]*ExtractionResult)}
	}

	key := res.RegionName
	if existing, taken := slot.record.Fields[key]; taken && existing.RegionID != res.RegionID {
		key = fmt.Sprintf("%s#%s", res.RegionName, res.RegionID)
	}
	slot.record.Fields[key] = res.Clone()

	return slot.record.clone(), nil
}

// PageRecord returns a copy of a page's record, if any region has been recorded on it
func (d *Document) PageRecord(page int) (*PageRecord, bool) {
	slot, ok := d.slots[page]
	if !ok {
		return nil, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.record == nil {
		return nil, false
	}
	return slot.record.clone(), true
}

// Status returns the current run status
func (d *Document) Status() RunStatus {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.RunStatus
}

// Finish sets the terminal run status and materializes Records
func (d *Document) Finish(status RunStatus) {
	d.statusMu.Lock()
	d.RunStatus = status
	d.FinishedAt = time.Now()
	d.statusMu.Unlock()

	d.Records = d.collectRecords()

	d.resultsMu.Lock()
	sort.SliceStable(d.Results, func(i, j int) bool {
		if d.Results[i].Page != d.Results[j].Page {
			return d.Results[i].Page < d.Results[j].Page
		}
		return d.Results[i].RegionName < d.Results[j].RegionName
	})
	d.resultsMu.Unlock()
}

// Snapshot returns a deep copy of the document, safe to read while a run is in flight
func (d *Document) Snapshot() *Document {
	d.statusMu.RLock()
	status, finished := d.RunStatus, d.FinishedAt
	d.statusMu.RUnlock()

	d.resultsMu.Lock()
	results := make([]*ExtractionResult, len(d.Results))
	for i, r := range d.Results {
		results[i] = r.Clone()
	}
	d.resultsMu.Unlock()

	return &Document{
		ID:             d.ID,
		PageCount:      d.PageCount,
		Regions:        append([]Region(nil), d.Regions...),
		Classification: d.Classification,
		Records:        d.collectRecords(),
		Results:        results,
		RunStatus:      status,
		StartedAt:      d.StartedAt,
		FinishedAt:     finished,
	}
}

func (d *Document) collectRecords() []*PageRecord {
	var records []*PageRecord
	for _, page := range d.Pages() {
		if rec, ok := d.PageRecord(page); ok {
			records = append(records, rec)
		}
	}
	return records
}
